// Package handlers implements the HTTP surface over the ledger: SMS
// ingestion, transaction queries and mutations, tagging, CSV export and
// the websocket streams.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/api/middleware"
	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/export"
	"github.com/dvloznov/sms-ledger/internal/ingest"
	"github.com/dvloznov/sms-ledger/internal/store"
)

// MessagesHandler handles inbound SMS batches.
type MessagesHandler struct {
	coordinator *ingest.Coordinator
	log         zerolog.Logger
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(coordinator *ingest.Coordinator, log zerolog.Logger) *MessagesHandler {
	return &MessagesHandler{coordinator: coordinator, log: log}
}

// Ingest handles POST /api/messages
func (h *MessagesHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []ingest.Message `json:"messages"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "messages is required")
		return
	}

	results := h.coordinator.ProcessBatch(r.Context(), req.Messages)

	var persisted int
	for _, res := range results {
		if res.Outcome == ingest.OutcomePersisted {
			persisted++
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results":   results,
		"persisted": persisted,
		"count":     len(results),
	})
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store       store.TransactionStore
	coordinator *ingest.Coordinator
	log         zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st store.TransactionStore, coordinator *ingest.Coordinator, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: st, coordinator: coordinator, log: log}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.store.List(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return an array for empty results, not null
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Create handles POST /api/transactions (manual entry)
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var entry domain.ManualEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.coordinator.RecordManualEntry(r.Context(), entry)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// Get handles GET /api/transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, id int64) {
	tx, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}
	if tx == nil {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Update handles PUT /api/transactions/{id}
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, id int64) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tx.ID = id

	if err := h.store.Update(r.Context(), &tx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Int64("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// UpdateTag handles PUT /api/transactions/{id}/tag
func (h *TransactionsHandler) UpdateTag(w http.ResponseWriter, r *http.Request, id int64) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(strings.TrimSpace(req.Tag)) > domain.MaxTagLength {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("tag exceeds %d characters", domain.MaxTagLength))
		return
	}

	if err := h.store.UpdateTag(r.Context(), id, req.Tag); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Int64("transaction_id", id).Msg("Failed to update tag")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update tag")
		return
	}

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Int64("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeleteAll handles DELETE /api/transactions
func (h *TransactionsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete all transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Export handles GET /api/transactions/export
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.store.List(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions for export")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, txs); err != nil {
		h.log.Error().Err(err).Msg("Failed to render CSV")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// QuickTags handles GET /api/quick-tags
func (h *TransactionsHandler) QuickTags(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string][]string{"tags": domain.QuickTags})
}

// UntaggedCount handles GET /api/untagged-count
func (h *TransactionsHandler) UntaggedCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.UntaggedCount(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count untagged transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to count untagged transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"untagged": n})
}

// queryFromParams maps URL query parameters to a store query.
func queryFromParams(params url.Values) (store.Query, error) {
	var q store.Query

	q.TodayOnly = params.Get("today") == "true"
	q.UntaggedOnly = params.Get("untagged") == "true"
	q.Search = params.Get("search")

	if v := params.Get("direction"); v != "" {
		d, err := domain.ParseDirection(v)
		if err != nil {
			return store.Query{}, fmt.Errorf("invalid direction %q", v)
		}
		q.Direction = &d
	}
	if v := params.Get("entry_method"); v != "" {
		m, err := domain.ParseEntryMethod(v)
		if err != nil {
			return store.Query{}, fmt.Errorf("invalid entry_method %q", v)
		}
		q.EntryMethod = &m
	}
	if v := params.Get("from"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return store.Query{}, fmt.Errorf("invalid from date %q", v)
		}
		q.From = &d
	}
	if v := params.Get("to"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return store.Query{}, fmt.Errorf("invalid to date %q", v)
		}
		q.To = &d
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.Query{}, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.Query{}, fmt.Errorf("invalid offset %q", v)
		}
		q.Offset = n
	}
	if v := params.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return store.Query{}, fmt.Errorf("invalid page %q", v)
		}
		// page is shorthand for limit/offset with the default page size.
		// An explicit limit still wins.
		if q.Limit == 0 {
			q.Limit = domain.DefaultPageSize
		}
		q.Offset = (n - 1) * q.Limit
	}

	return q, nil
}
