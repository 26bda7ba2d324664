package resilience

import (
	"context"
	"errors"
	"testing"
)

func TestBulkhead_TryAcquire(t *testing.T) {
	rejected := 0
	b := NewBulkhead(BulkheadConfig{Name: "jobs", MaxConcurrent: 2, OnReject: func(string) { rejected++ }})

	if !b.TryAcquire() || !b.TryAcquire() {
		t.Fatal("expected two slots")
	}
	if b.TryAcquire() {
		t.Fatal("expected third acquisition to fail")
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejection, got %d", rejected)
	}
	if b.InUse() != 2 {
		t.Errorf("expected 2 in use, got %d", b.InUse())
	}
	b.Release()
	if !b.TryAcquire() {
		t.Error("expected slot after release")
	}
}

func TestBulkhead_Unlimited(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})
	for i := 0; i < 100; i++ {
		if !b.TryAcquire() {
			t.Fatal("unlimited bulkhead must always admit")
		}
	}
	b.Release()
	if b.InUse() != 0 || b.MaxConcurrent() != 0 {
		t.Errorf("unlimited bulkhead reports no usage, got %d/%d", b.InUse(), b.MaxConcurrent())
	}
}

func TestBulkhead_Execute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		if inner := b.Execute(ctx, func(context.Context) error { return nil }); !errors.Is(inner, ErrBulkheadFull) {
			t.Errorf("expected ErrBulkheadFull while held, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.InUse() != 0 {
		t.Errorf("expected slot released, got %d in use", b.InUse())
	}
}
