package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cancel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(queue.New(db), cancel.NewManager(), zerolog.Nop())
}

func TestToViewFromViewRoundTrip(t *testing.T) {
	j := queue.Job{ProcessType: queue.ProcessPartial, Path: "/x/a.mp4", Time: "01:02:03"}
	assert.Equal(t, j, fromView(toView(j)))
}

func TestStatusReportsIdleWhenEmpty(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/queue/status", nil)
	w := httptest.NewRecorder()

	h.status(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.Processing)
	assert.Nil(t, resp.CurrentProcessing)
	assert.Empty(t, resp.Queue)
}

func TestStatusReportsCurrentAndPending(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Queue.Enqueue(queue.Job{ProcessType: queue.ProcessAll, Path: "/x/a.mp4"}))
	require.NoError(t, h.Queue.Enqueue(queue.Job{ProcessType: queue.ProcessAll, Path: "/x/b.mp4"}))
	_, _, err := h.Queue.PromoteHead()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/queue/status", nil)
	w := httptest.NewRecorder()
	h.status(w, req)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Processing)
	require.NotNil(t, resp.CurrentProcessing)
	assert.Equal(t, "/x/a.mp4", resp.CurrentProcessing.Path)
	require.Len(t, resp.Queue, 1)
	assert.Equal(t, "/x/b.mp4", resp.Queue[0].Path)
}

func TestRemoveMissingJobReturnsNotFound(t *testing.T) {
	h := newTestHandler(t)
	body := `{"process_type":"all","path":"/nope.mp4"}`
	req := httptest.NewRequest(http.MethodDelete, "/api/queue/remove", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.remove(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelCurrentClearsSlot(t *testing.T) {
	h := newTestHandler(t)
	require.NoError(t, h.Queue.Enqueue(queue.Job{ProcessType: queue.ProcessAll, Path: "/x/a.mp4"}))
	_, _, err := h.Queue.PromoteHead()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/queue/cancel-current", nil)
	w := httptest.NewRecorder()
	h.cancelCurrent(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok, err := h.Queue.PeekCurrent()
	require.NoError(t, err)
	assert.False(t, ok)
}
