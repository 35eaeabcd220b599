package pool

import (
	"context"
	"testing"
	"time"
)

func newTestPool(maxPerType int) *SimpleParameterPool {
	return NewSimpleParameterPool(PoolConfig{
		MaxValuesPerType: maxPerType,
	})
}

func TestSimpleParameterPool_AddAndGet(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()
	ctx := context.Background()

	evicted, err := p.Add(ctx, NewParameterValue("partner-1", SemanticTypePartnerID, 0))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if evicted != 0 {
		t.Errorf("Add() evicted = %d, want 0", evicted)
	}

	v, err := p.Get(ctx, SemanticTypePartnerID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v == nil || v.Value != "partner-1" {
		t.Errorf("Get() = %v, want partner-1", v)
	}
	if v.AccessCount() != 1 {
		t.Errorf("AccessCount() = %d, want 1", v.AccessCount())
	}
}

func TestSimpleParameterPool_GetMiss(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()

	v, err := p.Get(context.Background(), SemanticTypeInvoiceID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != nil {
		t.Errorf("Get() = %v, want nil for empty type", v)
	}

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.MissCount != 1 {
		t.Errorf("MissCount = %d, want 1", stats.MissCount)
	}
}

func TestSimpleParameterPool_FIFOEviction(t *testing.T) {
	p := newTestPool(2)
	defer p.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := p.Add(ctx, NewParameterValue(id, SemanticTypeInvoiceID, 0)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	count, err := p.Count(ctx, SemanticTypeInvoiceID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	// The oldest value was evicted
	v, err := p.Get(ctx, SemanticTypeInvoiceID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v == nil || v.Value != "b" {
		t.Errorf("Get() = %v, want b after FIFO eviction", v)
	}

	if p.EvictionCount() != 1 {
		t.Errorf("EvictionCount() = %d, want 1", p.EvictionCount())
	}
}

func TestSimpleParameterPool_ExpiredValuesSkipped(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()
	ctx := context.Background()

	if _, err := p.Add(ctx, NewParameterValue("stale", SemanticTypeCurrencyCode, time.Nanosecond)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := p.Add(ctx, NewParameterValue("fresh", SemanticTypeCurrencyCode, time.Hour)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	time.Sleep(time.Millisecond)

	v, err := p.Get(ctx, SemanticTypeCurrencyCode)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v == nil || v.Value != "fresh" {
		t.Errorf("Get() = %v, want fresh", v)
	}
}

func TestSimpleParameterPool_Cleanup(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()
	ctx := context.Background()

	if _, err := p.Add(ctx, NewParameterValue("stale", SemanticTypeMethodCode, time.Nanosecond)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	time.Sleep(time.Millisecond)

	removed, err := p.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed = %d, want 1", removed)
	}
}

func TestSimpleParameterPool_GetRandom(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()
	ctx := context.Background()

	for _, id := range []string{"x", "y", "z"} {
		if _, err := p.Add(ctx, NewParameterValue(id, SemanticTypePartnerID, 0)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	seen := map[any]bool{}
	for range 50 {
		v, err := p.GetRandom(ctx, SemanticTypePartnerID)
		if err != nil {
			t.Fatalf("GetRandom() error = %v", err)
		}
		if v == nil {
			t.Fatal("GetRandom() = nil, want a value")
		}
		seen[v.Value] = true
	}
	if len(seen) < 2 {
		t.Errorf("GetRandom() returned %d distinct values across 50 draws, want at least 2", len(seen))
	}
}

func TestSimpleParameterPool_Types(t *testing.T) {
	p := newTestPool(0)
	defer p.Close()
	ctx := context.Background()

	_, _ = p.Add(ctx, NewParameterValue("p", SemanticTypePartnerID, 0))
	_, _ = p.Add(ctx, NewParameterValue("i", SemanticTypeInvoiceID, 0))

	types, err := p.Types(ctx)
	if err != nil {
		t.Fatalf("Types() error = %v", err)
	}
	if len(types) != 2 {
		t.Errorf("Types() = %v, want 2 types", types)
	}
}

func TestSimpleParameterPool_ClosedPool(t *testing.T) {
	p := newTestPool(0)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := p.Add(context.Background(), NewParameterValue("v", SemanticTypeUUID, 0)); err != ErrPoolClosed {
		t.Errorf("Add() after Close error = %v, want ErrPoolClosed", err)
	}
	if _, err := p.Get(context.Background(), SemanticTypeUUID); err != ErrPoolClosed {
		t.Errorf("Get() after Close error = %v, want ErrPoolClosed", err)
	}
	if err := p.Close(); err != ErrPoolClosed {
		t.Errorf("second Close() error = %v, want ErrPoolClosed", err)
	}
}
