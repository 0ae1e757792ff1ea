package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sms-ledger/internal/store"
)

// StreamHandler serves live-query results over websockets. Each connection
// owns one store subscription; the first frame is the current snapshot and
// every later frame is a changed result.
type StreamHandler struct {
	store    store.TransactionStore
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(st store.TransactionStore, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		store: st,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Transactions handles GET /api/stream. Filters come in as the same query
// parameters the list endpoint accepts.
func (h *StreamHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, err := h.store.Watch(r.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open live query")
		return
	}
	defer sub.Cancel()

	// Reader goroutine: we ignore client frames but need the read loop to
	// notice a closed connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for snap := range sub.Updates() {
		if err := conn.WriteJSON(snap); err != nil {
			h.log.Debug().Err(err).Msg("Websocket client gone")
			return
		}
	}
}

// UntaggedCount handles GET /api/stream/untagged-count.
func (h *StreamHandler) UntaggedCount(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub, err := h.store.WatchUntaggedCount(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open untagged-count stream")
		return
	}
	defer sub.Cancel()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for n := range sub.Updates() {
		if err := conn.WriteJSON(map[string]int64{"untagged": n}); err != nil {
			h.log.Debug().Err(err).Msg("Websocket client gone")
			return
		}
	}
}
