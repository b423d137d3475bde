package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"k8s.io/klog/v2"
)

// Dedup remembers event identities for a window so the relay replaying the
// tail of a room after a reconnect does not reach the sinks twice
type Dedup struct {
	cache *bigcache.BigCache
}

func NewDedup(ctx context.Context, window time.Duration) (*Dedup, error) {
	cache, err := bigcache.New(ctx, bigcache.Config{
		Shards:      1024,
		LifeWindow:  window,
		CleanWindow: time.Minute,
		Logger:      klog.NewStandardLogger("INFO"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init dedup cache: %s", err.Error())
	}
	return &Dedup{cache: cache}, nil
}

// Seen reports whether key was already recorded, recording it otherwise.
// A cache failure reports false so the event still passes.
func (d *Dedup) Seen(key string) (bool, error) {
	_, err := d.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, err
	}
	if err := d.cache.Set(key, []byte{1}); err != nil {
		return false, err
	}
	return false, nil
}

func (d *Dedup) Len() int {
	return d.cache.Len()
}

func (d *Dedup) Close() error {
	return d.cache.Close()
}
