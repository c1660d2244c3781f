// api/handlers/deadletter_handlers_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pulsestream/api/models"
)

type stubDLQ struct {
	letters  []models.DeadLetter
	requeued []uuid.UUID
	err      error
	gotLimit int
}

func (s *stubDLQ) ListDeadLetters(_ context.Context, limit int) ([]models.DeadLetter, error) {
	s.gotLimit = limit
	return s.letters, s.err
}

func (s *stubDLQ) RequeueDeadLetter(_ context.Context, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.requeued = append(s.requeued, id)
	return nil
}

func dlqRouter(h *DeadLetterHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/dead-letters", h.List)
	r.POST("/api/dead-letters/:id/requeue", h.Requeue)
	return r
}

func TestListDeadLetters(t *testing.T) {
	dl := models.DeadLetter{
		ID:           uuid.New(),
		EventIDs:     []uuid.UUID{uuid.New()},
		AttemptCount: 3,
		FailedAt:     time.Now().UTC(),
		LastError:    "analytical write: connection refused",
	}
	q := &stubDLQ{letters: []models.DeadLetter{dl}}
	r := dlqRouter(NewDeadLetterHandlers(q))

	req := httptest.NewRequest(http.MethodGet, "/api/dead-letters?limit=25", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if q.gotLimit != 25 {
		t.Errorf("limit = %d, want 25", q.gotLimit)
	}

	var resp struct {
		DeadLetters []models.DeadLetter `json:"dead_letters"`
		Count       int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.DeadLetters) != 1 || resp.DeadLetters[0].ID != dl.ID {
		t.Errorf("body = %+v", resp)
	}
}

func TestListDeadLettersRejectsBadLimit(t *testing.T) {
	r := dlqRouter(NewDeadLetterHandlers(&stubDLQ{}))

	req := httptest.NewRequest(http.MethodGet, "/api/dead-letters?limit=0", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
}

func TestRequeueDeadLetter(t *testing.T) {
	id := uuid.New()
	q := &stubDLQ{}
	r := dlqRouter(NewDeadLetterHandlers(q))

	req := httptest.NewRequest(http.MethodPost, "/api/dead-letters/"+id.String()+"/requeue", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if len(q.requeued) != 1 || q.requeued[0] != id {
		t.Errorf("requeued = %v, want [%s]", q.requeued, id)
	}
}

func TestRequeueDeadLetterNotFound(t *testing.T) {
	q := &stubDLQ{err: models.ErrNotFound}
	r := dlqRouter(NewDeadLetterHandlers(q))

	req := httptest.NewRequest(http.MethodPost, "/api/dead-letters/"+uuid.NewString()+"/requeue", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body)
	}
}

func TestRequeueDeadLetterBadID(t *testing.T) {
	r := dlqRouter(NewDeadLetterHandlers(&stubDLQ{}))

	req := httptest.NewRequest(http.MethodPost, "/api/dead-letters/not-a-uuid/requeue", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
}
