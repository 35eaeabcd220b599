package ledgerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cobranza/backend/internal/domain/currency"
	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/partner"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
)

// maxResponseSize is the maximum allowed response size from the ledger (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrLedgerUnavailable indicates the ledger could not be reached
var ErrLedgerUnavailable = errors.New("ledger: service unavailable")

// ErrLedgerInvalidResponse indicates the ledger returned an unparseable body
var ErrLedgerInvalidResponse = errors.New("ledger: invalid response")

// Config holds the connection settings for the ledger API
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxIdleConns int
}

// Validate checks the configuration for required fields
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("ledger: base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("ledger: invalid base URL: %w", err)
	}
	return nil
}

// Client is the HTTP client for the external accounting ledger. It serves
// read snapshots (invoices, credit notes, rates, partners, methods) and
// submits payments for atomic registration.
//
// A single Client implements every receivables port backed by the ledger.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a ledger API client with the given configuration
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConns,
			},
		},
	}, nil
}

// envelope is the ledger's standard response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *remoteError    `json:"error,omitempty"`
}

// remoteError is the ledger's error payload
type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Invoice Operations
// ---------------------------------------------------------------------------

// OpenInvoices returns a partner's open invoices with embedded payment history
func (c *Client) OpenInvoices(ctx context.Context, partnerID uuid.UUID) ([]*finance.Invoice, error) {
	var invoices []*finance.Invoice
	path := fmt.Sprintf("/partners/%s/invoices/open", partnerID)
	if err := c.get(ctx, path, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// Invoice returns a single invoice snapshot
func (c *Client) Invoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	var invoice finance.Invoice
	path := fmt.Sprintf("/invoices/%s", id)
	if err := c.get(ctx, path, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ---------------------------------------------------------------------------
// Credit Note Operations
// ---------------------------------------------------------------------------

// CreditNotes returns a partner's credit notes in the given currency
func (c *Client) CreditNotes(ctx context.Context, partnerID uuid.UUID, ccy valueobject.Currency) ([]*partner.CreditNote, error) {
	var notes []*partner.CreditNote
	path := fmt.Sprintf("/partners/%s/credit-notes?currency=%s", partnerID, url.QueryEscape(string(ccy)))
	if err := c.get(ctx, path, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// ---------------------------------------------------------------------------
// Currency Operations
// ---------------------------------------------------------------------------

// Currencies returns the currency set the ledger knows
func (c *Client) Currencies(ctx context.Context) ([]*currency.Currency, error) {
	var currencies []*currency.Currency
	if err := c.get(ctx, "/currencies", &currencies); err != nil {
		return nil, err
	}
	return currencies, nil
}

// LatestRates returns the most recent quote per non-base currency
func (c *Client) LatestRates(ctx context.Context) ([]currency.ExchangeRate, error) {
	var rates []currency.ExchangeRate
	if err := c.get(ctx, "/rates/latest", &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// ---------------------------------------------------------------------------
// Partner Operations
// ---------------------------------------------------------------------------

// Partner returns a partner's tax profile
func (c *Client) Partner(ctx context.Context, id uuid.UUID) (*partner.Partner, error) {
	var p partner.Partner
	path := fmt.Sprintf("/partners/%s", id)
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PaymentMethods returns the payment method catalog
func (c *Client) PaymentMethods(ctx context.Context) ([]*finance.PaymentMethod, error) {
	var methods []*finance.PaymentMethod
	if err := c.get(ctx, "/payment-methods", &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// ---------------------------------------------------------------------------
// Payment Operations
// ---------------------------------------------------------------------------

// Register submits a payment with its allocation set for atomic application.
// The ledger re-validates allocations against live invoice state; a refusal
// surfaces as shared.ErrSubmissionRejected so callers can re-fetch and
// recompute.
func (c *Client) Register(ctx context.Context, payment *finance.Payment) error {
	return c.post(ctx, "/payments", payment, nil)
}

// Transactions returns a partner's full transaction set for statements
func (c *Client) Transactions(ctx context.Context, partnerID uuid.UUID) ([]finance.Transaction, error) {
	var txs []finance.Transaction
	path := fmt.Sprintf("/partners/%s/transactions", partnerID)
	if err := c.get(ctx, path, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ledger: failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// do performs an HTTP request against the ledger and decodes the envelope
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ledger: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("ledger: failed to read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				return statusError(resp.StatusCode, nil)
			}
			return fmt.Errorf("%w: %v", ErrLedgerInvalidResponse, err)
		}
	}

	if resp.StatusCode >= 400 || (len(raw) > 0 && !env.Success) {
		return statusError(resp.StatusCode, env.Error)
	}

	if out != nil {
		if env.Data == nil {
			return fmt.Errorf("%w: missing data", ErrLedgerInvalidResponse)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerInvalidResponse, err)
		}
	}
	return nil
}

// statusError maps a ledger refusal to the matching domain sentinel
func statusError(status int, remote *remoteError) error {
	detail := ""
	if remote != nil {
		detail = fmt.Sprintf("%s: %s", remote.Code, remote.Message)
	} else {
		detail = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, detail)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, detail)
	case remote != nil && remote.Code == "SUBMISSION_REJECTED":
		return fmt.Errorf("%w: %s", shared.ErrSubmissionRejected, detail)
	case remote != nil && remote.Code == "NOT_FOUND":
		return fmt.Errorf("%w: %s", shared.ErrNotFound, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, detail)
	default:
		return fmt.Errorf("ledger: request failed: %s", detail)
	}
}
