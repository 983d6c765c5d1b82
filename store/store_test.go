package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStoreBatchAndIterate(t *testing.T) {
	s, err := OpenMem()
	require.NoError(t, err)
	defer s.Close()

	b := s.NewBatch()
	b.PutJSON([]byte("w/0002"), record{Name: "bob", Count: 2})
	b.PutJSON([]byte("w/0001"), record{Name: "alice", Count: 1})
	b.Put([]byte("other"), []byte("x"))
	assert.Equal(t, 3, b.Len())
	require.NoError(t, s.Write(b))

	var names []string
	err = s.Iterate([]byte("w/"), func(_, val []byte) error {
		names = append(names, string(val))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Contains(t, names[0], "alice")

	var r record
	require.NoError(t, s.GetJSON([]byte("w/0002"), &r))
	assert.Equal(t, record{Name: "bob", Count: 2}, r)

	_, err = s.Get([]byte("missing"))
	assert.True(t, s.IsNotFound(err))
	assert.True(t, s.IsNotFound(s.GetJSON([]byte("missing"), &r)))

	b = s.NewBatch()
	b.PutJSON([]byte("bad"), make(chan int))
	b.Put([]byte("good"), []byte("y"))
	assert.Error(t, s.Write(b))
	ok, err := s.Has([]byte("good"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	val, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, s.Delete([]byte("k")))
	_, err = s.Get([]byte("k"))
	assert.True(t, s.IsNotFound(err))
}
