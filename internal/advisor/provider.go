package advisor

import (
	"context"

	"tradepilot/internal/market"
)

// Provider is one external advisory source. The raw payload shape is opaque
// here; normalization happens at the dispatcher boundary.
type Provider interface {
	ID() string
	Request(ctx context.Context, snapshot market.Snapshot) (raw string, err error)
}
