package advisor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tradepilot/internal/market"
)

// ScriptedProvider replays canned responses keyed by snapshot fingerprint,
// falling back to a per-symbol script consumed in order. Deterministic, so
// backtests built on it are reproducible.
type ScriptedProvider struct {
	id string

	mu       sync.Mutex
	byPrint  map[string]string
	bySymbol map[string][]string
	cursor   map[string]int
}

func NewScriptedProvider(id string) *ScriptedProvider {
	return &ScriptedProvider{
		id:       id,
		byPrint:  make(map[string]string),
		bySymbol: make(map[string][]string),
		cursor:   make(map[string]int),
	}
}

func (p *ScriptedProvider) ID() string { return p.id }

// RespondTo pins a raw response to one exact snapshot fingerprint.
func (p *ScriptedProvider) RespondTo(fingerprint, raw string) {
	p.mu.Lock()
	p.byPrint[fingerprint] = raw
	p.mu.Unlock()
}

// Script appends raw responses served in order for a symbol.
func (p *ScriptedProvider) Script(symbol string, raws ...string) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	p.mu.Lock()
	p.bySymbol[sym] = append(p.bySymbol[sym], raws...)
	p.mu.Unlock()
}

func (p *ScriptedProvider) Request(_ context.Context, snapshot market.Snapshot) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if raw, ok := p.byPrint[snapshot.Fingerprint()]; ok {
		return raw, nil
	}
	sym := strings.ToUpper(strings.TrimSpace(snapshot.Symbol))
	script := p.bySymbol[sym]
	i := p.cursor[sym]
	if i >= len(script) {
		return "", fmt.Errorf("scripted advisor %s: no response for %s", p.id, snapshot.Symbol)
	}
	p.cursor[sym] = i + 1
	return script[i], nil
}
