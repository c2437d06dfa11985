package app

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/observe"
)

// defaultHistoryLimit caps /history search results when no limit is given.
const defaultHistoryLimit = 50

// serveHistory lists the transcript of a session, or searches it when the
// q parameter is set. The session parameter defaults to the running session.
//
//	GET /history?session=<id>
//	GET /history?q=<words>&role=learner&limit=20
func (a *App) serveHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	sessionID := params.Get("session")
	if sessionID == "" {
		sessionID = a.sessionID
	}

	var (
		entries []history.Entry
		err     error
	)
	if q := params.Get("q"); q != "" {
		s, ok := a.recorder.(history.Searcher)
		if !ok {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "history store does not support search"})
			return
		}
		limit := defaultHistoryLimit
		if v := params.Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
		}
		entries, err = s.Search(r.Context(), q, history.SearchOpts{
			SessionID: sessionID,
			Role:      history.Role(params.Get("role")),
			Limit:     limit,
		})
	} else {
		rd, ok := a.recorder.(history.Reader)
		if !ok {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "history store is write-only"})
			return
		}
		entries, err = rd.Entries(r.Context(), sessionID)
	}
	if err != nil {
		observe.Logger(r.Context()).Error("history request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
