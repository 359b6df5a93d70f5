package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/store"
)

type stubReadRepository struct {
	balance *domain.MerchantBalanceState
	entries []domain.LedgerEntry
	err     error
}

func (s *stubReadRepository) GetMerchantBalance(_ context.Context, _ uuid.UUID) (*domain.MerchantBalanceState, error) {
	return s.balance, s.err
}

func (s *stubReadRepository) GetVoucher(_ context.Context, _ uuid.UUID) (*domain.VoucherState, error) {
	return nil, s.err
}

func (s *stubReadRepository) GetSettlement(_ context.Context, _ uuid.UUID) (*domain.SettlementState, error) {
	return nil, s.err
}

func (s *stubReadRepository) ListLedgerEntries(_ context.Context, _ uuid.UUID, _, _ int) ([]domain.LedgerEntry, error) {
	return s.entries, s.err
}

func serveBalanceRequest(repo store.ReadRepository, merchantID string) *httptest.ResponseRecorder {
	h := NewProjectionHandlers(repo)
	r := chi.NewRouter()
	r.Get("/merchants/{merchantID}/balance", h.GetMerchantBalanceHandler)

	req := httptest.NewRequest(http.MethodGet, "/merchants/"+merchantID+"/balance", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetMerchantBalanceHandler(t *testing.T) {
	merchantID := uuid.New()
	repo := &stubReadRepository{balance: &domain.MerchantBalanceState{MerchantID: merchantID}}

	rec := serveBalanceRequest(repo, merchantID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body domain.MerchantBalanceState
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.MerchantID != merchantID {
		t.Fatalf("unexpected merchant id in response: %s", body.MerchantID)
	}
}

func TestGetMerchantBalanceHandlerNotFound(t *testing.T) {
	repo := &stubReadRepository{err: store.ErrStateNotFound}

	rec := serveBalanceRequest(repo, uuid.New().String())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetMerchantBalanceHandlerBadID(t *testing.T) {
	rec := serveBalanceRequest(&stubReadRepository{}, "not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListMerchantLedgerHandlerEmptyPage(t *testing.T) {
	merchantID := uuid.New()
	h := NewProjectionHandlers(&stubReadRepository{})
	r := chi.NewRouter()
	r.Get("/merchants/{merchantID}/ledger", h.ListMerchantLedgerHandler)

	req := httptest.NewRequest(http.MethodGet, "/merchants/"+merchantID.String()+"/ledger?limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page ledgerPageResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if page.Entries == nil || len(page.Entries) != 0 {
		t.Fatalf("expected an empty entries array, got %v", page.Entries)
	}
	if page.Limit != 10 || page.Offset != 0 {
		t.Fatalf("paging echo wrong: limit=%d offset=%d", page.Limit, page.Offset)
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := InternalAuthMiddleware("secret")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Internal-API-Key", "secret")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid key must pass, got %d", rec.Code)
	}

	open := InternalAuthMiddleware("")(next)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("empty required key must disable the check, got %d", rec.Code)
	}
}
