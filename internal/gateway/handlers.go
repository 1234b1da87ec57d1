package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers the websocket endpoint and the REST snapshot
// endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	// ?since=<seq> resumes from the replay buffer instead of a snapshot.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade error", "error", err)
			return
		}
		since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
		hub.Register(conn, since)
	})

	mux.HandleFunc("/api/bars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.Bars())
	})

	mux.HandleFunc("/api/ghost", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.Ghosts())
	})

	mux.HandleFunc("/api/overlay", func(w http.ResponseWriter, r *http.Request) {
		ov := hub.Overlay()
		if ov == nil {
			SetCORS(w)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, ov)
	})

	// Gap backfill: /api/missed?from=N&to=M returns buffered envelopes.
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			SetCORS(w)
			http.Error(w, "from and to must be integers with from <= to", http.StatusBadRequest)
			return
		}
		raw := hub.Missed(from, to)
		out := make([]json.RawMessage, len(raw))
		for i, b := range raw {
			out[i] = b
		}
		writeJSON(w, out)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
