package keeper

import (
	"context"
	"time"

	logger "github.com/ElrondNetwork/elrond-go-logger"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/engine"
)

var log = logger.GetOrCreate("keeper")

// Upkeepable is the check then act surface of the engine
type Upkeepable interface {
	CheckTransitionReady(ctx context.Context, path data.PathID) (bool, error)
	TriggerTransition(ctx context.Context, path data.PathID) error
}

// Keeper polls every transition path and triggers the ready ones
type Keeper struct {
	target   Upkeepable
	interval time.Duration
	paths    []data.PathID
}

func New(target Upkeepable, interval time.Duration) *Keeper {
	return &Keeper{
		target:   target,
		interval: interval,
		paths:    data.TransitionPaths,
	}
}

// Tick runs one pass over the paths and returns the ones it triggered
func (k *Keeper) Tick(ctx context.Context) []data.PathID {
	var performed []data.PathID
	for _, path := range k.paths {
		ready, err := k.target.CheckTransitionReady(ctx, path)
		if err != nil {
			log.Warn("check transition", "path", path, "error", err)
			continue
		}
		if !ready {
			continue
		}

		err = k.target.TriggerTransition(ctx, path)
		switch {
		case err == nil:
			log.Info("transition performed", "path", path)
			performed = append(performed, path)
		case errors.Is(err, engine.ErrUpkeepNotReady):
			log.Debug("transition no longer ready", "path", path, "error", err)
		default:
			log.Error("transition failed", "path", path, "error", err)
		}
	}

	return performed
}

// Run ticks every interval until ctx is done
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	log.Info("keeper started", "interval", k.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			k.Tick(ctx)
		}
	}
}
