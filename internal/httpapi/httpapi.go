// Package httpapi implements the queue-control HTTP surface: status,
// remove, reorder, and cancel-current, mounted under /api/queue by the
// application root.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cancel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
)

const streamPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	Queue     *queue.Queue
	CancelMgr *cancel.Manager
	Log       zerolog.Logger
}

func New(q *queue.Queue, cm *cancel.Manager, log zerolog.Logger) *Handler {
	return &Handler{Queue: q, CancelMgr: cm, Log: log}
}

// Mount registers this handler's routes on r under /api/queue.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/queue/status", h.status)
	r.Delete("/api/queue/remove", h.remove)
	r.Post("/api/queue/reorder", h.reorder)
	r.Delete("/api/queue/cancel-current", h.cancelCurrent)
	r.Get("/api/queue/stream", h.stream)
}

type jobView struct {
	ProcessType string `json:"process_type"`
	Path        string `json:"path"`
	Time        string `json:"time,omitempty"`
}

func toView(j queue.Job) jobView {
	return jobView{ProcessType: string(j.ProcessType), Path: j.Path, Time: j.Time}
}

func fromView(v jobView) queue.Job {
	return queue.Job{ProcessType: queue.ProcessType(v.ProcessType), Path: v.Path, Time: v.Time}
}

type statusResponse struct {
	Queue             []jobView `json:"queue"`
	Processing        string    `json:"processing"`
	CurrentProcessing *jobView  `json:"current_processing"`
}

func (h *Handler) snapshot() (statusResponse, error) {
	pending, err := h.Queue.Pending()
	if err != nil {
		return statusResponse{}, err
	}

	resp := statusResponse{Queue: make([]jobView, 0, len(pending)), Processing: "idle"}
	for _, j := range pending {
		resp.Queue = append(resp.Queue, toView(j))
	}

	current, ok, err := h.Queue.PeekCurrent()
	if err != nil {
		return statusResponse{}, err
	}
	if ok {
		resp.Processing = "processing"
		v := toView(current)
		resp.CurrentProcessing = &v
	}
	return resp, nil
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// stream upgrades to a WebSocket and pushes the queue status snapshot
// every streamPushInterval until the client disconnects.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug().Err(err).Msg("queue stream upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(streamPushInterval)
	defer ticker.Stop()

	for {
		resp, err := h.snapshot()
		if err != nil {
			return
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	var v jobView
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Queue.Remove(fromView(v)); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Queue []jobView `json:"queue"`
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobs := make([]queue.Job, len(req.Queue))
	for i, v := range req.Queue {
		jobs[i] = fromView(v)
	}
	if err := h.Queue.Reorder(jobs); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelCurrent(w http.ResponseWriter, r *http.Request) {
	h.CancelMgr.CancelCurrent()
	if err := h.Queue.ClearCurrent(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
