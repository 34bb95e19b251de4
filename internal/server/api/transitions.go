package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// TransitionHandler serves the transition journal.
type TransitionHandler struct {
	store *store.Store
	log   logs.Log
}

// NewTransitionHandler creates a TransitionHandler reading from s.
func NewTransitionHandler(s *store.Store, log logs.Log) *TransitionHandler {
	return &TransitionHandler{store: s, log: log}
}

type transitionResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	Label     string `json:"label"`
	Payload   string `json:"payload"`
	Name      string `json:"name"`
	Previous  string `json:"previous"`
	Landmarks []int  `json:"landmarks,omitempty"`
	CreatedAt string `json:"created_at"`
}

type listTransitionsResponse struct {
	Transitions []transitionResponse `json:"transitions"`
	Total       int                  `json:"total"`
}

func toResponse(t *store.Transition) transitionResponse {
	return transitionResponse{
		ID:        t.ID,
		SessionID: t.SessionID,
		Seq:       t.Seq,
		Label:     t.Label,
		Payload:   t.Payload,
		Name:      gesture.Payload(t.Payload).Name(),
		Previous:  t.Previous,
		Landmarks: t.Landmarks,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// ServeHTTP routes GET /api/transitions and GET /api/transitions/{id}.
func (h *TransitionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/transitions"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, id)
}

// list handles GET /api/transitions?limit=N&session=ID, newest first.
func (h *TransitionHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{SessionID: q.Get("session")}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	records, err := h.store.Transitions().List(opts)
	if err != nil {
		h.log.Errorf("Failed to list transitions: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to list transitions")
		return
	}
	total, err := h.store.Transitions().Count(opts.SessionID)
	if err != nil {
		h.log.Errorf("Failed to count transitions: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to list transitions")
		return
	}

	response := listTransitionsResponse{
		Transitions: make([]transitionResponse, 0, len(records)),
		Total:       total,
	}
	for _, t := range records {
		response.Transitions = append(response.Transitions, toResponse(t))
	}
	WriteJSON(w, http.StatusOK, response)
}

// get handles GET /api/transitions/{id}.
func (h *TransitionHandler) get(w http.ResponseWriter, id string) {
	t, err := h.store.Transitions().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Transition not found")
			return
		}
		h.log.Errorf("Failed to get transition %s: %v", id, err)
		WriteError(w, http.StatusInternalServerError, "Failed to get transition")
		return
	}
	WriteJSON(w, http.StatusOK, toResponse(t))
}
