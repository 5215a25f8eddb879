package shoots

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/obscura-studio/obscura/testing"
)

func newKanbanHandler(repo *mockRepository) *Handler {
	return &Handler{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		service: NewService(repo),
		now:     func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/kanban/update_status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler(res, req)

	var payload map[string]any
	if strings.HasPrefix(res.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	}
	return res, payload
}

func TestUpdateStatusMovesSession(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, Code: "240115_ANA_NB_1", KanbanStatus: "Scheduled"}
	h := newKanbanHandler(repo)

	res, payload := postJSON(t, h.UpdateStatusForTest, `{"session_id":1,"new_status":"PC Backup"}`)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, false, payload["archived"])
	assert.Nil(t, payload["action_required"])
	assert.Contains(t, payload["message"], "240115_ANA_NB_1")
	assert.Equal(t, "PC Backup", repo.sessions[1].KanbanStatus)
}

func TestUpdateStatusEditingGate(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, Code: "240115_ANA_NB_1", KanbanStatus: "Selection"}
	h := newKanbanHandler(repo)

	res, payload := postJSON(t, h.UpdateStatusForTest, `{"session_id":1,"new_status":"Editing"}`)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "confirm_selection_date", payload["action_required"])
	assert.Equal(t, "Selection", repo.sessions[1].KanbanStatus, "gate must not move the session")
}

func TestUpdateStatusArchives(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, Code: "240115_ANA_NB_1", KanbanStatus: "Printing"}
	h := newKanbanHandler(repo)

	res, payload := postJSON(t, h.UpdateStatusForTest, `{"session_id":1,"new_status":"Archive"}`)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, payload["archived"])
	assert.Contains(t, payload["message"], "archived")
}

func TestUpdateStatusUnknownStage(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, KanbanStatus: "Scheduled"}
	h := newKanbanHandler(repo)

	res, _ := postJSON(t, h.UpdateStatusForTest, `{"session_id":1,"new_status":"Limbo"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUpdateStatusMissingSession(t *testing.T) {
	repo := newMockRepository()
	h := newKanbanHandler(repo)

	res, _ := postJSON(t, h.UpdateStatusForTest, `{"session_id":99,"new_status":"Editing"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestConfirmSelectionDate(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, Code: "240115_ANA_NB_1", KanbanStatus: "Selection"}
	h := newKanbanHandler(repo)

	res, payload := postJSON(t, h.ConfirmSelectionDateForTest, `{"session_id":1,"selection_date":"2024-03-08"}`)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, EditingStage, repo.sessions[1].KanbanStatus)
	require.NotNil(t, repo.sessions[1].SelectionCompletedDate)
	assert.Equal(t, "2024-03-08", repo.sessions[1].SelectionCompletedDate.Format("2006-01-02"))
}

func TestConfirmSelectionDateRejectsBadDate(t *testing.T) {
	repo := newMockRepository()
	repo.sessions[1] = &Session{ID: 1, KanbanStatus: "Selection"}
	h := newKanbanHandler(repo)

	res, _ := postJSON(t, h.ConfirmSelectionDateForTest, `{"session_id":1,"selection_date":"08/03/2024"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
