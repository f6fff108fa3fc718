package decision

import (
	"context"
	"fmt"
	"time"

	"tradepilot/internal/advisor"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
)

// Dispatcher resolves one decision per instrument per cycle: cache first,
// then the advisory provider under a bounded timeout. It never returns an
// error and never panics outward; every failure degrades to Hold with
// confidence zero so one instrument's outage cannot stall the rest.
type Dispatcher struct {
	provider  advisor.Provider
	cache     *Cache
	namespace string
	ttl       time.Duration
	timeout   time.Duration
	nowFn     func() time.Time
}

func NewDispatcher(provider advisor.Provider, cache *Cache, namespace string, ttl, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Dispatcher{
		provider:  provider,
		cache:     cache,
		namespace: namespace,
		ttl:       ttl,
		timeout:   timeout,
		nowFn:     time.Now,
	}
}

// Dispatch returns the decision for a snapshot. Cache hits skip the provider
// entirely; misses call it once, normalize and cache the result.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot market.Snapshot) Decision {
	key := Key(d.namespace, snapshot.Symbol, snapshot.Fingerprint())
	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			logger.Debugf("dispatcher %s: cache hit for %s", d.provider.ID(), snapshot.Symbol)
			return cached
		}
	}

	dec, err := d.request(ctx, snapshot)
	if err != nil {
		logger.Warnf("dispatcher %s: %s degraded to hold: %v", d.provider.ID(), snapshot.Symbol, err)
		return Hold(snapshot.Symbol, d.provider.ID(), fmt.Sprintf("advisory unavailable: %v", err), d.nowFn().UTC())
	}
	if d.cache != nil {
		d.cache.Put(key, dec, d.ttl)
	}
	return dec
}

func (d *Dispatcher) request(ctx context.Context, snapshot market.Snapshot) (dec Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("dispatcher %s: provider panic: %v", d.provider.ID(), r)
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.nowFn()
	raw, err := d.provider.Request(cctx, snapshot)
	if err != nil {
		return Decision{}, fmt.Errorf("provider call failed after %s: %w",
			d.nowFn().Sub(start).Truncate(time.Millisecond), err)
	}
	dec, err = Parse(raw, snapshot.Symbol, d.provider.ID(), d.nowFn().UTC())
	if err != nil {
		return Decision{}, err
	}
	return dec, nil
}
