// api/handlers/event_handlers_test.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pulsestream/api/models"
	"pulsestream/api/store"
)

type stubSubmitter struct {
	got []models.Event
	res store.SubmitResult
	err error
}

func (s *stubSubmitter) SubmitEvents(_ context.Context, events []models.Event) (store.SubmitResult, error) {
	s.got = events
	if s.err != nil {
		return store.SubmitResult{}, s.err
	}
	return s.res, nil
}

func submitRouter(h *EventHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/events", h.SubmitEvents)
	return r
}

func postEvents(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func eventJSON(id uuid.UUID) string {
	return fmt.Sprintf(`{"event_id":%q,"occurred_at":"2025-06-01T10:30:00Z","user_id":"user-1","event_type":"page_view"}`, id)
}

func TestSubmitEventsMixedBatch(t *testing.T) {
	fresh := uuid.New()
	dup := uuid.New()
	bad := uuid.New()

	st := &stubSubmitter{res: store.SubmitResult{
		Inserted:   []uuid.UUID{fresh},
		Duplicates: []uuid.UUID{dup},
	}}
	r := submitRouter(NewEventHandlers(st, 1000))

	// Third entry has no occurred_at and must reject without blocking the rest.
	body := fmt.Sprintf(`{"events":[%s,%s,{"event_id":%q,"user_id":"user-1","event_type":"page_view"}]}`,
		eventJSON(fresh), eventJSON(dup), bad)
	w := postEvents(t, r, body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var resp models.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalReceived != 3 || resp.Inserted != 1 || resp.Duplicates != 1 {
		t.Errorf("counts = %+v, want total 3 / inserted 1 / duplicates 1", resp)
	}
	if len(resp.Rejected) != 1 || resp.Rejected[0].EventID != bad.String() || resp.Rejected[0].Reason != "invalid" {
		t.Errorf("Rejected = %+v, want the malformed event marked invalid", resp.Rejected)
	}
	if len(st.got) != 2 {
		t.Errorf("store received %d events, want 2 valid ones", len(st.got))
	}
}

func TestSubmitEventsAllDuplicates(t *testing.T) {
	id := uuid.New()
	st := &stubSubmitter{res: store.SubmitResult{Duplicates: []uuid.UUID{id}}}
	r := submitRouter(NewEventHandlers(st, 1000))

	w := postEvents(t, r, fmt.Sprintf(`{"events":[%s]}`, eventJSON(id)))

	// Nothing was created, so 200 rather than 201.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	var resp models.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Inserted != 0 || resp.Duplicates != 1 {
		t.Errorf("counts = %+v, want inserted 0 / duplicates 1", resp)
	}
}

func TestSubmitEventsBatchTooLarge(t *testing.T) {
	st := &stubSubmitter{}
	r := submitRouter(NewEventHandlers(st, 2))

	body := fmt.Sprintf(`{"events":[%s,%s,%s]}`,
		eventJSON(uuid.New()), eventJSON(uuid.New()), eventJSON(uuid.New()))
	w := postEvents(t, r, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
	if st.got != nil {
		t.Error("store was called for an oversized batch")
	}
}

func TestSubmitEventsEmptyBatch(t *testing.T) {
	r := submitRouter(NewEventHandlers(&stubSubmitter{}, 1000))

	if w := postEvents(t, r, `{"events":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
}

func TestSubmitEventsMalformedBody(t *testing.T) {
	r := submitRouter(NewEventHandlers(&stubSubmitter{}, 1000))

	if w := postEvents(t, r, `{"events": not-json`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body)
	}
}

func TestSubmitEventsStoreUnavailable(t *testing.T) {
	st := &stubSubmitter{err: errors.New("connection refused")}
	r := submitRouter(NewEventHandlers(st, 1000))

	w := postEvents(t, r, fmt.Sprintf(`{"events":[%s]}`, eventJSON(uuid.New())))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", w.Code, w.Body)
	}
}
