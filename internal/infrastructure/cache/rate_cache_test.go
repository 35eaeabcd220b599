package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
)

// fakeRateProvider counts upstream hits
type fakeRateProvider struct {
	currencyCalls int
	rateCalls     int
	rates         []currency.ExchangeRate
	currencies    []*currency.Currency
}

func (f *fakeRateProvider) Currencies(ctx context.Context) ([]*currency.Currency, error) {
	f.currencyCalls++
	return f.currencies, nil
}

func (f *fakeRateProvider) LatestRates(ctx context.Context) ([]currency.ExchangeRate, error) {
	f.rateCalls++
	return f.rates, nil
}

// testRedisClient connects to a local Redis or skips the test
func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping rate cache test")
	}

	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedRateProvider_LatestRates(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	upstream := &fakeRateProvider{
		rates: []currency.ExchangeRate{
			{Code: valueobject.USD, Rate: decimal.NewFromFloat(36.5), AsOf: time.Now().UTC().Truncate(time.Second)},
		},
	}
	provider := NewCachedRateProvider(upstream, client, time.Minute, nil)

	first, err := provider.LatestRates(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, upstream.rateCalls)

	// Second read is served from cache
	second, err := provider.LatestRates(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, upstream.rateCalls)
	assert.True(t, second[0].Rate.Equal(first[0].Rate))
}

func TestCachedRateProvider_Currencies(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	ves, err := currency.NewCurrency(valueobject.VES, "Bolívar", "Bs.", true)
	require.NoError(t, err)
	upstream := &fakeRateProvider{currencies: []*currency.Currency{ves}}
	provider := NewCachedRateProvider(upstream, client, time.Minute, nil)

	_, err = provider.Currencies(ctx)
	require.NoError(t, err)
	_, err = provider.Currencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.currencyCalls)
}

func TestCachedRateProvider_Invalidate(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	upstream := &fakeRateProvider{
		rates: []currency.ExchangeRate{
			{Code: valueobject.USD, Rate: decimal.NewFromInt(36), AsOf: time.Now()},
		},
	}
	provider := NewCachedRateProvider(upstream, client, time.Minute, nil)

	_, err := provider.LatestRates(ctx)
	require.NoError(t, err)
	require.NoError(t, provider.Invalidate(ctx))

	_, err = provider.LatestRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.rateCalls, "invalidation forces an upstream refresh")
}
