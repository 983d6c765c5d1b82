package store

import (
	"encoding/json"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var log = logger.GetOrCreate("store")

var (
	writeOpt = opt.WriteOptions{Sync: true}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}
)

// Store is a small key value store on top of leveldb
type Store struct {
	db *leveldb.DB
}

// Open opens or creates the database at path, recovering it if the manifest
// is corrupted
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
	})
	if lerrors.IsCorrupted(err) {
		log.Warn("database corrupted, recovering", "path", path, "error", err)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	log.Debug("database opened", "path", path)

	return &Store{db: db}, nil
}

// OpenMem opens a database living only in memory
func OpenMem() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsNotFound reports whether err means the key is missing
func (s *Store) IsNotFound(err error) bool {
	return errors.Cause(err) == leveldb.ErrNotFound
}

func (s *Store) Get(key []byte) ([]byte, error) {
	val, err := s.db.Get(key, &readOpt)
	if err != nil {
		return nil, err
	}

	return val, nil
}

func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key, &readOpt)
}

func (s *Store) Put(key, val []byte) error {
	return s.db.Put(key, val, &writeOpt)
}

func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, &writeOpt)
}

// GetJSON decodes the value stored at key into v
func (s *Store) GetJSON(key []byte, v interface{}) error {
	val, err := s.Get(key)
	if err != nil {
		return err
	}

	return errors.Wrapf(json.Unmarshal(val, v), "decode %s", key)
}

// Iterate calls fn for every key starting with prefix, in key order
func (s *Store) Iterate(prefix []byte, fn func(key, val []byte) error) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix), &scanOpt)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}

	return it.Error()
}

// NewBatch starts a batch of writes applied atomically by Write
func (s *Store) NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

func (s *Store) Write(b *Batch) error {
	if b.err != nil {
		return b.err
	}
	if b.b.Len() == 0 {
		return nil
	}

	return s.db.Write(b.b, &writeOpt)
}

// Batch collects writes, the first encoding error is kept and returned by
// Store.Write
type Batch struct {
	b   *leveldb.Batch
	err error
}

func (b *Batch) Put(key, val []byte) {
	b.b.Put(key, val)
}

func (b *Batch) Delete(key []byte) {
	b.b.Delete(key)
}

func (b *Batch) PutJSON(key []byte, v interface{}) {
	if b.err != nil {
		return
	}
	val, err := json.Marshal(v)
	if err != nil {
		b.err = errors.Wrapf(err, "encode %s", key)
		return
	}
	b.b.Put(key, val)
}

func (b *Batch) Len() int {
	return b.b.Len()
}
