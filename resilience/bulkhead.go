package resilience

import (
	"context"
	"errors"
)

// ErrBulkheadFull is returned when no slot is free.
var ErrBulkheadFull = errors.New("bulkhead is full")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent holders.
	// Zero or negative means unlimited.
	MaxConcurrent int
	// OnReject is called when an acquisition is refused.
	OnReject func(name string)
}

// Bulkhead caps concurrent work. Acquisition never blocks: callers that
// cannot get a slot skip their work.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	b := &Bulkhead{config: config}
	if config.MaxConcurrent > 0 {
		b.sem = make(chan struct{}, config.MaxConcurrent)
	}
	return b
}

// TryAcquire takes a slot if one is free.
func (b *Bulkhead) TryAcquire() bool {
	if b.sem == nil {
		return true
	}
	select {
	case b.sem <- struct{}{}:
		return true
	default:
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return false
	}
}

// Release returns a slot taken by TryAcquire.
func (b *Bulkhead) Release() {
	if b.sem == nil {
		return
	}
	select {
	case <-b.sem:
	default:
	}
}

// Execute runs fn while holding a slot, or returns ErrBulkheadFull.
func (b *Bulkhead) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.TryAcquire() {
		return ErrBulkheadFull
	}
	defer b.Release()
	return fn(ctx)
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	if b.sem == nil {
		return 0
	}
	return len(b.sem)
}

// MaxConcurrent returns the configured cap (0 when unlimited).
func (b *Bulkhead) MaxConcurrent() int {
	if b.config.MaxConcurrent < 0 {
		return 0
	}
	return b.config.MaxConcurrent
}
