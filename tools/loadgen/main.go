// Command loadgen drives payment preview traffic against a running
// receivables backend. It harvests real parameter values from the API first,
// then builds preview requests from the pool so the generated traffic
// exercises the same currencies and methods the target actually serves.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cobranza/tools/loadgen/internal/pool"
)

type options struct {
	target      string
	partnerID   string
	concurrency int
	duration    time.Duration
	timeout     time.Duration
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type currencyRow struct {
	Code string `json:"code"`
}

type methodRow struct {
	Code string `json:"code"`
}

type report struct {
	requests  atomic.Int64
	failures  atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (r *report) record(d time.Duration, ok bool) {
	r.requests.Add(1)
	if !ok {
		r.failures.Add(1)
		return
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.mu.Unlock()
}

func (r *report) percentile(p float64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(r.latencies))
	copy(sorted, r.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	opts := options{}
	flag.StringVar(&opts.target, "target", "http://localhost:8080", "base URL of the receivables backend")
	flag.StringVar(&opts.partnerID, "partner", "", "partner ID to pay as (required)")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "how long to generate load")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	if opts.partnerID == "" {
		fmt.Fprintln(os.Stderr, "loadgen: -partner is required")
		flag.Usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: opts.timeout}
	params := pool.NewSimpleParameterPool(pool.DefaultPoolConfig())
	defer params.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	if err := harvest(ctx, client, params, opts); err != nil {
		log.Fatalf("harvest failed: %v", err)
	}

	stats, _ := params.Stats(ctx)
	log.Printf("harvested %d parameter values across %d types", stats.TotalValues, len(stats.ValuesByType))

	rep := &report{}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < opts.concurrency; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			worker(ctx, client, params, opts, rep, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(i))
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := rep.requests.Load()
	failed := rep.failures.Load()
	log.Printf("done: %d requests in %s (%.1f req/s), %d failed",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds(), failed)
	log.Printf("latency p50=%s p95=%s p99=%s",
		rep.percentile(0.50).Round(time.Millisecond),
		rep.percentile(0.95).Round(time.Millisecond),
		rep.percentile(0.99).Round(time.Millisecond))
}

// harvest seeds the parameter pool from the target's own API
func harvest(ctx context.Context, client *http.Client, params pool.ParameterPool, opts options) error {
	var currencies []currencyRow
	if err := getJSON(ctx, client, opts.target+"/api/v1/currencies", &currencies); err != nil {
		return fmt.Errorf("list currencies: %w", err)
	}
	for _, c := range currencies {
		v := pool.NewParameterValue(c.Code, pool.SemanticTypeCurrencyCode, 0).
			WithSource("GET /api/v1/currencies", "$.data[*].code")
		if _, err := params.Add(ctx, v); err != nil {
			return err
		}
	}

	var methods []methodRow
	methodsURL := fmt.Sprintf("%s/api/v1/partners/%s/methods", opts.target, opts.partnerID)
	if err := getJSON(ctx, client, methodsURL, &methods); err != nil {
		return fmt.Errorf("list partner methods: %w", err)
	}
	for _, m := range methods {
		v := pool.NewParameterValue(m.Code, pool.SemanticTypeMethodCode, 0).
			WithSource("GET /api/v1/partners/{id}/methods", "$.data[*].code")
		if _, err := params.Add(ctx, v); err != nil {
			return err
		}
	}

	if len(currencies) == 0 || len(methods) == 0 {
		return fmt.Errorf("target returned no currencies or methods to generate from")
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}

// worker fires preview requests built from pooled parameters until the
// context expires
func worker(ctx context.Context, client *http.Client, params pool.ParameterPool, opts options, rep *report, rng *rand.Rand) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := buildPreviewBody(ctx, params, opts.partnerID, rng)
		if err != nil {
			rep.record(0, false)
			continue
		}

		start := time.Now()
		ok := postPreview(ctx, client, opts.target, body)
		rep.record(time.Since(start), ok)
	}
}

func buildPreviewBody(ctx context.Context, params pool.ParameterPool, partnerID string, rng *rand.Rand) ([]byte, error) {
	ccy, err := params.GetRandom(ctx, pool.SemanticTypeCurrencyCode)
	if err != nil || ccy == nil {
		return nil, fmt.Errorf("no currency available")
	}
	method, err := params.GetRandom(ctx, pool.SemanticTypeMethodCode)
	if err != nil || method == nil {
		return nil, fmt.Errorf("no method available")
	}

	amount := fmt.Sprintf("%.2f", 1+rng.Float64()*999)
	payload := map[string]any{
		"payment_id":  randomUUID(rng),
		"partner_id":  partnerID,
		"method_code": method.Value,
		"currency":    ccy.Value,
		"amount":      amount,
		"type":        "INCOME",
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

func postPreview(ctx context.Context, client *http.Client, target string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/api/v1/payments/preview", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// randomUUID builds a v4 UUID from the worker's own source so workers do not
// contend on a shared generator
func randomUUID(rng *rand.Rand) string {
	var b [16]byte
	rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
