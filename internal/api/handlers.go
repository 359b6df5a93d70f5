/**
 * @description
 * This file contains the HTTP handlers for the projection-service's query API.
 * Handlers parse incoming requests, query the materialized read models through
 * the read repository and write the HTTP response. The API is read-only: all
 * state changes flow in through the event consumer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/domain, internal/store: Read models and storage errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/store"
)

// ProjectionHandlers holds the read repository the query handlers use.
type ProjectionHandlers struct {
	repo store.ReadRepository
}

// NewProjectionHandlers creates a new instance of ProjectionHandlers.
func NewProjectionHandlers(repo store.ReadRepository) *ProjectionHandlers {
	return &ProjectionHandlers{repo: repo}
}

// ledgerPageResponse wraps a ledger page with its paging echo so clients can
// request the next page without recomputing offsets.
type ledgerPageResponse struct {
	MerchantID uuid.UUID            `json:"merchant_id"`
	Entries    []domain.LedgerEntry `json:"entries"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

// GetMerchantBalanceHandler serves the materialized balance for one merchant.
func (h *ProjectionHandlers) GetMerchantBalanceHandler(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := h.parseID(w, chi.URLParam(r, "merchantID"), "merchant id")
	if !ok {
		return
	}

	state, err := h.repo.GetMerchantBalance(r.Context(), merchantID)
	if err != nil {
		h.writeStoreError(w, err, "merchant balance")
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// ListMerchantLedgerHandler serves a page of a merchant's ledger, newest first.
func (h *ProjectionHandlers) ListMerchantLedgerHandler(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := h.parseID(w, chi.URLParam(r, "merchantID"), "merchant id")
	if !ok {
		return
	}

	limit := h.queryInt(r, "limit", 50)
	offset := h.queryInt(r, "offset", 0)

	entries, err := h.repo.ListLedgerEntries(r.Context(), merchantID, limit, offset)
	if err != nil {
		h.writeStoreError(w, err, "merchant ledger")
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, ledgerPageResponse{
		MerchantID: merchantID,
		Entries:    entries,
		Limit:      limit,
		Offset:     offset,
	})
}

// GetVoucherHandler serves the materialized state of one voucher.
func (h *ProjectionHandlers) GetVoucherHandler(w http.ResponseWriter, r *http.Request) {
	voucherID, ok := h.parseID(w, chi.URLParam(r, "voucherID"), "voucher id")
	if !ok {
		return
	}

	state, err := h.repo.GetVoucher(r.Context(), voucherID)
	if err != nil {
		h.writeStoreError(w, err, "voucher")
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// GetSettlementHandler serves the materialized state of one settlement run.
func (h *ProjectionHandlers) GetSettlementHandler(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := h.parseID(w, chi.URLParam(r, "settlementID"), "settlement id")
	if !ok {
		return
	}

	state, err := h.repo.GetSettlement(r.Context(), settlementID)
	if err != nil {
		h.writeStoreError(w, err, "settlement")
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *ProjectionHandlers) parseID(w http.ResponseWriter, raw, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProjectionHandlers) queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (h *ProjectionHandlers) writeStoreError(w http.ResponseWriter, err error, label string) {
	if errors.Is(err, store.ErrStateNotFound) {
		h.writeError(w, http.StatusNotFound, label+" not found")
		return
	}
	log.Printf("level=error component=api msg=\"read query failed\" resource=%s err=%v", label, err)
	h.writeError(w, http.StatusInternalServerError, "Unable to load "+label)
}

func (h *ProjectionHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *ProjectionHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
