package monitoring

import (
	"context"
	"time"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreProbe is a scheduled job that pings the result store.
type StoreProbe struct {
	store   Pinger
	timeout time.Duration
}

func NewStoreProbe(store Pinger, timeout time.Duration) *StoreProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StoreProbe{store: store, timeout: timeout}
}

func (p *StoreProbe) Name() string { return "result-store" }

func (p *StoreProbe) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.store.Ping(ctx)
}
