package cache

import (
	"context"
	"time"

	"trustlab/internal/ports"
)

// NoopCache never stores anything; every Get is a miss.
type NoopCache struct{}

var _ ports.Cache = NoopCache{}

func (NoopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (NoopCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (NoopCache) Delete(context.Context, string) error { return nil }
