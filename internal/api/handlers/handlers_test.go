package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/export"
	"github.com/dvloznov/sms-ledger/internal/ingest"
	"github.com/dvloznov/sms-ledger/internal/settings"
	"github.com/dvloznov/sms-ledger/internal/sms"
	"github.com/dvloznov/sms-ledger/internal/store"
	"github.com/dvloznov/sms-ledger/internal/store/inmemory"
)

const (
	axisSender = "AD-AXISBK-S"
	debitSMS   = "INR 150.00 debited\nA/c no. XX3248\n02-10-25, 20:05:59\nUPI/P2M/527537387973/MANGARAM CHOWDARY\nAxis Bank"
	creditSMS  = "INR 5000.00 credited\nA/c no. XX3248\n28-09-25, 20:05:06 IST\nUPI/P2A/512654122901/MADDU REV/AXIS BANK - Axis Bank"
)

func newTestServer(t *testing.T) (*httptest.Server, *inmemory.Store) {
	t.Helper()

	st := inmemory.New(zerolog.Nop())
	t.Cleanup(func() { st.Close() })

	coordinator := ingest.New(zerolog.Nop(), sms.NewParser(zerolog.Nop()), st, nil, settings.Defaults())

	mux := http.NewServeMux()
	Routes(mux,
		NewMessagesHandler(coordinator, zerolog.Nop()),
		NewTransactionsHandler(st, coordinator, zerolog.Nop()),
		NewStreamHandler(st, zerolog.Nop()),
	)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestIngestRoundTrip(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]any{
		"messages": []ingest.Message{
			{Sender: axisSender, Body: debitSMS},
			{Sender: "SPAM-SENDER", Body: debitSMS},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Results   []ingest.Result `json:"results"`
		Persisted int             `json:"persisted"`
		Count     int             `json:"count"`
	}](t, resp)

	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.Persisted)
	assert.Equal(t, ingest.OutcomePersisted, body.Results[0].Outcome)
	assert.Equal(t, ingest.OutcomeDroppedSender, body.Results[1].Outcome)

	txs, err := st.List(context.Background(), store.Query{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "MANGARAM CHOWDARY", txs[0].CounterpartyName)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]any{"messages": []ingest.Message{}})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualEntryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", map[string]any{
		"amount":            "42.50",
		"direction":         "DEBIT",
		"counterparty_name": "Corner Shop",
		"date":              "2025-10-02",
		"time":              "09:30:00",
		"user_tag":          "Groceries",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tx := decode[domain.Transaction](t, resp)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, domain.Manual, tx.EntryMethod)
	assert.Equal(t, domain.ManualInstitution, tx.Institution)
	assert.True(t, tx.IsTagged)
}

func TestManualEntryValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", map[string]any{
		"amount":    "0",
		"direction": "DEBIT",
		"date":      "2025-10-02",
		"time":      "09:30:00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListWithQueryParams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]any{
		"messages": []ingest.Message{
			{Sender: axisSender, Body: debitSMS},
			{Sender: axisSender, Body: creditSMS},
		},
	})
	resp.Body.Close()

	list := func(params string) []domain.Transaction {
		resp, err := http.Get(srv.URL + "/api/transactions" + params)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decode[[]domain.Transaction](t, resp)
	}

	assert.Len(t, list(""), 2)
	assert.Len(t, list("?direction=DEBIT"), 1)
	assert.Len(t, list("?search=maddu"), 1)
	assert.Len(t, list("?untagged=true"), 2)
	assert.Len(t, list("?from=2025-10-01&to=2025-10-31"), 1)
	assert.Len(t, list("?limit=1"), 1)

	// Ledger order: most recent date first.
	all := list("")
	assert.Equal(t, "MANGARAM CHOWDARY", all[0].CounterpartyName)
}

func TestListRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, params := range []string{"?direction=SIDEWAYS", "?from=not-a-date", "?limit=-1"} {
		resp, err := http.Get(srv.URL + "/api/transactions" + params)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, params)
	}
}

func TestGetUpdateDeleteByID(t *testing.T) {
	srv, st := newTestServer(t)

	id := seedOne(t, srv)

	resp, err := http.Get(fmt.Sprintf("%s/api/transactions/%d", srv.URL, id))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tx := decode[domain.Transaction](t, resp)
	assert.Equal(t, id, tx.ID)

	tx.CounterpartyName = "RENAMED"
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/transactions/%d", srv.URL, id), tx)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Transaction](t, resp)
	assert.Equal(t, "RENAMED", updated.CounterpartyName)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/transactions/%d", srv.URL, id), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := st.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetMissingIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/transactions/9999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTagUpdate(t *testing.T) {
	srv, _ := newTestServer(t)

	id := seedOne(t, srv)

	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/transactions/%d/tag", srv.URL, id),
		map[string]string{"tag": "Food"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tx := decode[domain.Transaction](t, resp)
	assert.Equal(t, "Food", tx.UserTag)
	assert.True(t, tx.IsTagged)

	// Clearing the tag flips the record back to untagged.
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/transactions/%d/tag", srv.URL, id),
		map[string]string{"tag": "   "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tx = decode[domain.Transaction](t, resp)
	assert.False(t, tx.IsTagged)
	assert.Empty(t, tx.UserTag)
}

func TestTagUpdateMissingIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/transactions/424242/tag",
		map[string]string{"tag": "Food"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	seedOne(t, srv)

	resp, err := http.Get(srv.URL + "/api/transactions/export")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), export.Header))
	assert.Contains(t, buf.String(), `"MANGARAM CHOWDARY"`)
}

func TestUntaggedCountEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	seedOne(t, srv)

	resp, err := http.Get(srv.URL + "/api/untagged-count")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]int64](t, resp)
	assert.Equal(t, int64(1), body["untagged"])
}

func TestQuickTagsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/quick-tags")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string][]string](t, resp)
	assert.Equal(t, domain.QuickTags, body["tags"])
}

func TestListPageParam(t *testing.T) {
	srv, st := newTestServer(t)

	for i := 0; i < domain.DefaultPageSize+3; i++ {
		tx := domain.Transaction{
			Amount:           decimal.NewFromInt(int64(i + 1)),
			Direction:        domain.Credit,
			AccountNumber:    domain.DefaultAccountNumber,
			Date:             civil.Date{Year: 2025, Month: 10, Day: 2},
			Time:             civil.Time{Hour: 12, Minute: 0, Second: i % 60},
			CounterpartyName: domain.UnknownCounterparty,
			Institution:      domain.ManualInstitution,
			EntryMethod:      domain.Manual,
		}
		_, err := st.Insert(context.Background(), &tx)
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/api/transactions?page=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]*domain.Transaction](t, resp), domain.DefaultPageSize)

	resp, err = http.Get(srv.URL + "/api/transactions?page=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]*domain.Transaction](t, resp), 3)

	resp, err = http.Get(srv.URL + "/api/transactions?page=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAllEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	seedOne(t, srv)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/transactions", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	n, err := st.UntaggedCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])
}

// seedOne ingests the debit scenario and returns its assigned id.
func seedOne(t *testing.T, srv *httptest.Server) int64 {
	t.Helper()

	resp := postJSON(t, srv.URL+"/api/messages", map[string]any{
		"messages": []ingest.Message{{Sender: axisSender, Body: debitSMS}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Results []ingest.Result `json:"results"`
	}](t, resp)
	require.Len(t, body.Results, 1)
	require.Equal(t, ingest.OutcomePersisted, body.Results[0].Outcome)
	return body.Results[0].TransactionID
}
