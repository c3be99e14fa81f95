package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condoflow/billing-engine/api"
	"github.com/condoflow/billing-engine/billing"
	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/settings"
	"github.com/condoflow/billing-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	provider := settings.NewStatic(decimal.NewFromInt(25), []settings.ExchangeRate{
		{Date: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Rate: decimal.NewFromInt(40), Active: true},
	})
	svc := billing.NewService(store, provider)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedOwner(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	require.NoError(t, store.PutOwner(context.Background(), &ledger.Owner{
		ID:         id,
		Name:       "Owner " + id,
		Properties: []ledger.Property{{Street: "calle-2", House: "15"}},
	}))
}

// =============================================================================
// PAYMENT FLOW
// =============================================================================

func TestAPI_ReportThenApprovePayment(t *testing.T) {
	// GIVEN: An owner with one pending due
	// WHEN:  A payment is reported and then approved over HTTP
	// THEN:  201 on report, 200 on approve, the due ends up paid

	srv, store := newTestServer(t)
	ctx := context.Background()

	seedOwner(t, store, "o-1")
	require.NoError(t, store.PutDebt(ctx, &ledger.Debt{
		ID:        "d-jan",
		OwnerID:   "o-1",
		Property:  ledger.Property{Street: "calle-2", House: "15"},
		Period:    ledger.Period{Year: 2024, Month: time.January},
		AmountUSD: decimal.NewFromInt(25),
		Status:    ledger.DebtPending,
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payments", api.ReportPaymentRequest{
		Beneficiaries: []api.BeneficiaryDTO{{OwnerID: "o-1", Amount: "1200"}},
		TotalAmount:   "1200",
		PaymentDate:   "2024-06-10",
		Method:        "transferencia",
		Bank:          "Banesco",
		Reference:     "00123456",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reported := decodeBody[api.PaymentDTO](t, resp)
	require.NotEmpty(t, reported.ID)
	assert.Equal(t, "pendiente", reported.Status)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/payments/"+reported.ID+"/approve",
		api.ApprovePaymentRequest{Observations: "checked"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decodeBody[api.PaymentDTO](t, resp)
	assert.Equal(t, "aprobado", approved.Status)
	assert.Equal(t, "40", approved.ExchangeRate)
	assert.NotEmpty(t, approved.ReceiptNumbers["o-1"])

	debt, err := store.GetDebt(ctx, "d-jan")
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtPaid, debt.Status)
}

func TestAPI_ApproveTwice_Conflict(t *testing.T) {
	srv, store := newTestServer(t)

	seedOwner(t, store, "o-1")
	require.NoError(t, store.PutPayment(context.Background(), &ledger.Payment{
		ID:            "p-1",
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: decimal.NewFromInt(1000)}},
		TotalAmount:   decimal.NewFromInt(1000),
		PaymentDate:   time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
		ReportedAt:    time.Now(),
		Method:        ledger.MethodTransfer,
		Status:        ledger.PaymentPending,
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payments/p-1/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/payments/p-1/approve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_ApproveUnknownPayment_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payments/ghost/approve", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RejectWithoutReason_BadRequest(t *testing.T) {
	srv, store := newTestServer(t)

	seedOwner(t, store, "o-1")
	require.NoError(t, store.PutPayment(context.Background(), &ledger.Payment{
		ID:            "p-1",
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: decimal.NewFromInt(500)}},
		TotalAmount:   decimal.NewFromInt(500),
		PaymentDate:   time.Now(),
		ReportedAt:    time.Now(),
		Method:        ledger.MethodTransfer,
		Status:        ledger.PaymentPending,
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payments/p-1/reject",
		api.RejectPaymentRequest{Reason: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/payments/p-1/reject",
		api.RejectPaymentRequest{Reason: "reference mismatch"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decodeBody[api.PaymentDTO](t, resp)
	assert.Equal(t, "rechazado", rejected.Status)
}

func TestAPI_DeletePayment(t *testing.T) {
	srv, store := newTestServer(t)

	seedOwner(t, store, "o-1")
	require.NoError(t, store.PutPayment(context.Background(), &ledger.Payment{
		ID:            "p-1",
		Beneficiaries: []ledger.Beneficiary{{OwnerID: "o-1", Amount: decimal.NewFromInt(500)}},
		TotalAmount:   decimal.NewFromInt(500),
		PaymentDate:   time.Now(),
		ReportedAt:    time.Now(),
		Method:        ledger.MethodTransfer,
		Status:        ledger.PaymentPending,
	}))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/payments/p-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/payments/p-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// OWNERS AND DEBT GENERATION
// =============================================================================

func TestAPI_CreateAndListOwners(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners", api.CreateOwnerRequest{
		Name:       "Maria Perez",
		Email:      "maria@example.com",
		Properties: []api.PropertyDTO{{Street: "calle-2", House: "15"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[api.OwnerDTO](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "0", created.Balance)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/owners", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	owners := decodeBody[[]api.OwnerDTO](t, resp)
	require.Len(t, owners, 1)
	assert.Equal(t, "Maria Perez", owners[0].Name)
}

func TestAPI_GenerateMonthlyDebts(t *testing.T) {
	srv, store := newTestServer(t)
	seedOwner(t, store, "o-1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/debts/monthly",
		api.MonthlyDebtsRequest{Period: "2024-06"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[api.MonthlyDebtsResponse](t, resp)
	assert.Equal(t, 1, res.Created)

	// Bad period format
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/debts/monthly",
		api.MonthlyDebtsRequest{Period: "junk"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReconcileOwner(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	seedOwner(t, store, "o-1")
	require.NoError(t, store.UpdateOwnerBalance(ctx, "o-1", decimal.NewFromInt(1000)))
	require.NoError(t, store.PutDebt(ctx, &ledger.Debt{
		ID:        "d-jan",
		OwnerID:   "o-1",
		Property:  ledger.Property{Street: "calle-2", House: "15"},
		Period:    ledger.Period{Year: 2024, Month: time.January},
		AmountUSD: decimal.NewFromInt(25),
		Status:    ledger.DebtPending,
	}))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o-1/reconcile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[api.ReconcileResultDTO](t, resp)
	assert.Equal(t, 1, res.SettledDues)
	assert.Equal(t, "1000", res.ConsumedLocal)
}
