package pool

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// SimpleParameterPool is a thread-safe ParameterPool over a single lock,
// which is plenty for the request rates the generator drives. Values are
// kept per semantic type in insertion order; eviction drops the oldest.
type SimpleParameterPool struct {
	mu      sync.RWMutex
	values  map[SemanticType][]*ParameterValue
	config  PoolConfig
	startAt time.Time

	hitCount      atomic.Int64
	missCount     atomic.Int64
	addCount      atomic.Int64
	evictionCount atomic.Int64
	expireCount   atomic.Int64

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	closed        atomic.Bool

	rng *rand.Rand
}

// NewSimpleParameterPool creates a pool and, when a cleanup interval is
// configured, starts the background sweep of expired values.
func NewSimpleParameterPool(config PoolConfig) *SimpleParameterPool {
	p := &SimpleParameterPool{
		values:      make(map[SemanticType][]*ParameterValue),
		config:      config,
		startAt:     time.Now(),
		cleanupDone: make(chan struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if config.CleanupInterval > 0 {
		p.cleanupTicker = time.NewTicker(config.CleanupInterval)
		go p.cleanupLoop()
	}

	return p
}

// Add stores a value, evicting the oldest of its type when at capacity.
func (p *SimpleParameterPool) Add(ctx context.Context, value *ParameterValue) (int, error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.addCount.Add(1)

	evicted := 0
	values := p.values[value.SemanticType]
	if p.config.MaxValuesPerType > 0 && len(values) >= p.config.MaxValuesPerType {
		p.values[value.SemanticType] = values[1:]
		p.evictionCount.Add(1)
		evicted = 1
	}

	p.values[value.SemanticType] = append(p.values[value.SemanticType], value)
	return evicted, nil
}

// Get returns the oldest live value for the semantic type.
func (p *SimpleParameterPool) Get(ctx context.Context, semanticType SemanticType) (*ParameterValue, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range p.values[semanticType] {
		if !v.IsExpired() {
			v.Touch()
			p.hitCount.Add(1)
			return v, nil
		}
	}

	p.missCount.Add(1)
	return nil, nil
}

// GetRandom returns a random live value for the semantic type so workers
// spread their preview requests over the harvested currencies and methods.
func (p *SimpleParameterPool) GetRandom(ctx context.Context, semanticType SemanticType) (*ParameterValue, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	values := p.values[semanticType]
	live := make([]*ParameterValue, 0, len(values))
	for _, v := range values {
		if !v.IsExpired() {
			live = append(live, v)
		}
	}
	if len(live) == 0 {
		p.missCount.Add(1)
		return nil, nil
	}

	v := live[p.rng.Intn(len(live))]
	v.Touch()
	p.hitCount.Add(1)
	return v, nil
}

// Count returns the number of stored values for the semantic type.
func (p *SimpleParameterPool) Count(ctx context.Context, semanticType SemanticType) (int, error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.values[semanticType]), nil
}

// Cleanup drops expired values across all semantic types.
func (p *SimpleParameterPool) Cleanup(ctx context.Context) (int, error) {
	if p.closed.Load() {
		return 0, ErrPoolClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for st, values := range p.values {
		live := values[:0]
		for _, v := range values {
			if v.IsExpired() {
				total++
				continue
			}
			live = append(live, v)
		}
		p.values[st] = live
	}

	p.expireCount.Add(int64(total))
	return total, nil
}

func (p *SimpleParameterPool) cleanupLoop() {
	for {
		select {
		case <-p.cleanupTicker.C:
			_, _ = p.Cleanup(context.Background())
		case <-p.cleanupDone:
			return
		}
	}
}

// Stats returns a snapshot of the pool's counters.
func (p *SimpleParameterPool) Stats(ctx context.Context) (Stats, error) {
	if p.closed.Load() {
		return Stats{}, ErrPoolClosed
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		ValuesByType:  make(map[SemanticType]int64),
		HitCount:      p.hitCount.Load(),
		MissCount:     p.missCount.Load(),
		EvictionCount: p.evictionCount.Load(),
		ExpiredCount:  p.expireCount.Load(),
		AddCount:      p.addCount.Load(),
		Uptime:        time.Since(p.startAt),
	}
	for st, values := range p.values {
		n := int64(len(values))
		stats.TotalValues += n
		stats.ValuesByType[st] = n
	}
	return stats, nil
}

// Types returns the semantic types that currently hold values.
func (p *SimpleParameterPool) Types(ctx context.Context) ([]SemanticType, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	types := make([]SemanticType, 0, len(p.values))
	for st, values := range p.values {
		if len(values) > 0 {
			types = append(types, st)
		}
	}
	return types, nil
}

// Close stops the cleanup sweep. Further operations fail with ErrPoolClosed.
func (p *SimpleParameterPool) Close() error {
	if p.closed.Swap(true) {
		return ErrPoolClosed
	}

	if p.cleanupTicker != nil {
		p.cleanupTicker.Stop()
		close(p.cleanupDone)
	}
	return nil
}

// EvictionCount returns how many values capacity pressure has dropped.
func (p *SimpleParameterPool) EvictionCount() int64 {
	return p.evictionCount.Load()
}
