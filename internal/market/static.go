package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticFeed serves a fixed snapshot per symbol. Used by tests and as the
// in-memory price source for paper fills.
type StaticFeed struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{data: make(map[string]Snapshot)}
}

func (f *StaticFeed) Set(snap Snapshot) {
	sym := strings.ToUpper(strings.TrimSpace(snap.Symbol))
	if sym == "" {
		return
	}
	snap.Symbol = sym
	f.mu.Lock()
	f.data[sym] = snap
	f.mu.Unlock()
}

func (f *StaticFeed) Snapshot(_ context.Context, symbol string) (Snapshot, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	f.mu.RLock()
	snap, ok := f.data[sym]
	f.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("no snapshot for %s", symbol)
	}
	return snap, nil
}
