package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sms-ledger/internal/api/middleware"
)

// Routes registers every endpoint on mux. The stream handler may be nil in
// contexts that have no websocket surface, such as the CLI tests.
func Routes(mux *http.ServeMux, mh *MessagesHandler, th *TransactionsHandler, sh *StreamHandler) {
	mux.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mh.Ingest(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			th.List(w, r)
		case http.MethodPost:
			th.Create(w, r)
		case http.MethodDelete:
			th.DeleteAll(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			th.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")

		// PUT /api/transactions/{id}/tag
		if tail, ok := strings.CutSuffix(rest, "/tag"); ok {
			id, err := strconv.ParseInt(tail, 10, 64)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
				return
			}
			if r.Method == http.MethodPut {
				th.UpdateTag(w, r, id)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
			return
		}

		switch r.Method {
		case http.MethodGet:
			th.Get(w, r, id)
		case http.MethodPut:
			th.Update(w, r, id)
		case http.MethodDelete:
			th.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/quick-tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			th.QuickTags(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/untagged-count", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			th.UntaggedCount(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	if sh != nil {
		mux.HandleFunc("/api/stream", sh.Transactions)
		mux.HandleFunc("/api/stream/untagged-count", sh.UntaggedCount)
	}

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
