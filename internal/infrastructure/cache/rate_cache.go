package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/cobranza/backend/internal/domain/currency"
)

const (
	ratesCacheKey      = "rates:latest"
	currenciesCacheKey = "rates:currencies"
)

// CachedRateProvider decorates a RateProvider with a Redis cache. Rate quotes
// change a few times a day; the cache keeps preview and register flows from
// hitting the ledger on every request.
//
// Cache failures degrade to the upstream provider, never to an error.
type CachedRateProvider struct {
	upstream receivables.RateProvider
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCachedRateProvider wraps upstream with a Redis cache using the given TTL
func NewCachedRateProvider(upstream receivables.RateProvider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRateProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRateProvider{
		upstream: upstream,
		client:   client,
		ttl:      ttl,
		logger:   logger,
	}
}

// Currencies returns the currency set, served from cache when fresh
func (p *CachedRateProvider) Currencies(ctx context.Context) ([]*currency.Currency, error) {
	var cached []*currency.Currency
	if p.readCache(ctx, currenciesCacheKey, &cached) {
		return cached, nil
	}

	currencies, err := p.upstream.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	p.writeCache(ctx, currenciesCacheKey, currencies)
	return currencies, nil
}

// LatestRates returns the latest quotes, served from cache when fresh
func (p *CachedRateProvider) LatestRates(ctx context.Context) ([]currency.ExchangeRate, error) {
	var cached []currency.ExchangeRate
	if p.readCache(ctx, ratesCacheKey, &cached) {
		return cached, nil
	}

	rates, err := p.upstream.LatestRates(ctx)
	if err != nil {
		return nil, err
	}
	p.writeCache(ctx, ratesCacheKey, rates)
	return rates, nil
}

// readCache returns true when the key exists and decodes cleanly
func (p *CachedRateProvider) readCache(ctx context.Context, key string, out any) bool {
	raw, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			p.logger.Warn("rate cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		p.logger.Warn("rate cache entry corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (p *CachedRateProvider) writeCache(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		p.logger.Warn("rate cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := p.client.Set(ctx, key, raw, p.ttl).Err(); err != nil {
		p.logger.Warn("rate cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the cached rate entries so the next read refreshes
func (p *CachedRateProvider) Invalidate(ctx context.Context) error {
	return p.client.Del(ctx, ratesCacheKey, currenciesCacheKey).Err()
}

var _ receivables.RateProvider = (*CachedRateProvider)(nil)
