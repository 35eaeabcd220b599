package ledgerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/cobranza/backend/internal/domain/finance"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/domain/shared/valueobject"
)

// The ledger client backs every remote port of the payment service.
var (
	_ receivables.InvoiceLedger    = (*Client)(nil)
	_ receivables.CreditNoteLedger = (*Client)(nil)
	_ receivables.RateProvider     = (*Client)(nil)
	_ receivables.PartnerDirectory = (*Client)(nil)
	_ receivables.PaymentLedger    = (*Client)(nil)
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]any{"success": status < 400, "data": data})
	require.NoError(t, err)
}

func TestNewClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient(&Config{})
		assert.Error(t, err)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		client, err := NewClient(&Config{BaseURL: "http://ledger:9090/api/v1/"})
		require.NoError(t, err)
		assert.Equal(t, "http://ledger:9090/api/v1", client.baseURL)
	})
}

func TestClient_OpenInvoices(t *testing.T) {
	partnerID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/partners/"+partnerID.String()+"/invoices/open", r.URL.Path)

		writeEnvelope(t, w, http.StatusOK, []map[string]any{
			{
				"id":           uuid.New().String(),
				"code":         "INV-001",
				"partner_id":   partnerID.String(),
				"currency":     "VES",
				"status":       "POSTED",
				"total":        "116",
				"total_tax":    "16",
				"invoice_date": "2026-01-15T00:00:00Z",
			},
		})
	})

	invoices, err := client.OpenInvoices(context.Background(), partnerID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-001", invoices[0].Code)
	assert.Equal(t, valueobject.VES, invoices[0].Currency)
	assert.True(t, invoices[0].Total.Equal(decimal.NewFromInt(116)))
}

func TestClient_Invoice_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"code": "NOT_FOUND", "message": "invoice not found"},
		})
	})

	_, err := client.Invoice(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClient_CreditNotes(t *testing.T) {
	partnerID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		writeEnvelope(t, w, http.StatusOK, []map[string]any{
			{
				"id":               uuid.New().String(),
				"code":             "NC-001",
				"partner_id":       partnerID.String(),
				"currency":         "USD",
				"total":            "80",
				"remaining_amount": "30",
				"status":           "OPEN",
				"issued_at":        "2026-02-01T00:00:00Z",
			},
		})
	})

	notes, err := client.CreditNotes(context.Background(), partnerID, valueobject.USD)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "NC-001", notes[0].Code)
	assert.True(t, notes[0].RemainingAmount.Equal(decimal.NewFromInt(30)))
}

func TestClient_LatestRates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates/latest", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, []map[string]any{
			{"code": "USD", "rate": "36.5", "as_of": "2026-03-01T00:00:00Z"},
		})
	})

	rates, err := client.LatestRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, valueobject.USD, rates[0].Code)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromFloat(36.5)))
}

func TestClient_Register(t *testing.T) {
	partnerID := uuid.New()
	newPayment := func(t *testing.T) *finance.Payment {
		t.Helper()
		p, err := finance.NewPayment(partnerID, "TRANSFER", valueobject.VES,
			decimal.NewFromInt(100), finance.PaymentTypeIncome, time.Now())
		require.NoError(t, err)
		return p
	}

	t.Run("submits payment body", func(t *testing.T) {
		var received finance.Payment
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/payments", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeEnvelope(t, w, http.StatusOK, map[string]any{"registered": true})
		})

		payment := newPayment(t)
		require.NoError(t, client.Register(context.Background(), payment))
		assert.Equal(t, payment.ID, received.ID)
		assert.Equal(t, "TRANSFER", received.MethodCode)
	})

	t.Run("conflict maps to submission rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]string{"code": "STALE_SNAPSHOT", "message": "invoice state changed"},
			})
		})

		err := client.Register(context.Background(), newPayment(t))
		assert.ErrorIs(t, err, shared.ErrSubmissionRejected)
	})

	t.Run("unprocessable maps to submission rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})

		err := client.Register(context.Background(), newPayment(t))
		assert.ErrorIs(t, err, shared.ErrSubmissionRejected)
	})

	t.Run("server error maps to unavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := client.Register(context.Background(), newPayment(t))
		assert.ErrorIs(t, err, ErrLedgerUnavailable)
	})
}

func TestClient_Transactions(t *testing.T) {
	partnerID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, []map[string]any{
			{
				"kind":     "INVOICE",
				"ref_id":   uuid.New().String(),
				"code":     "INV-001",
				"currency": "VES",
				"date":     "2026-01-15T00:00:00Z",
				"debit":    "116",
				"credit":   "0",
			},
		})
	})

	txs, err := client.Transactions(context.Background(), partnerID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, finance.TransactionKindInvoice, txs[0].Kind)
	assert.True(t, txs[0].Debit.Equal(decimal.NewFromInt(116)))
}

func TestClient_InvalidResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Currencies(context.Background())
	assert.ErrorIs(t, err, ErrLedgerInvalidResponse)
}

func TestClient_Unreachable(t *testing.T) {
	client, err := NewClient(&Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Currencies(context.Background())
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
}
