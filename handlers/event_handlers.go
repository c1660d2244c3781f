// api/handlers/event_handlers.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
	"pulsestream/api/store"
)

// EventSubmitter is the intake surface of the transactional store.
type EventSubmitter interface {
	SubmitEvents(ctx context.Context, events []models.Event) (store.SubmitResult, error)
}

type EventHandlers struct {
	Store        EventSubmitter
	MaxBatchSize int
}

func NewEventHandlers(st EventSubmitter, maxBatchSize int) *EventHandlers {
	return &EventHandlers{Store: st, MaxBatchSize: maxBatchSize}
}

// SubmitEvents handles POST /events.
//
// Every event in the batch is classified independently as inserted,
// duplicate, or rejected; a bad event never blocks its siblings. Only
// batches over the size cap are refused wholesale, before any work.
// A transactional-store failure fails the whole call — the caller retries
// the batch, which is safe because intake is idempotent.
func (h *EventHandlers) SubmitEvents(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if len(req.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "events must not be empty"})
		return
	}
	if len(req.Events) > h.MaxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("batch size %d exceeds maximum of %d", len(req.Events), h.MaxBatchSize),
		})
		return
	}

	rejected := []models.RejectedEvent{}
	valid := make([]models.Event, 0, len(req.Events))
	for _, sub := range req.Events {
		ev, err := sub.Parse()
		if err != nil {
			rejected = append(rejected, models.RejectedEvent{EventID: sub.EventID, Reason: "invalid"})
			continue
		}
		valid = append(valid, ev)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Store.SubmitEvents(ctx, valid)
	if err != nil {
		log.Error().Err(err).Msg("event submission failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event store unavailable, retry the batch"})
		return
	}

	status := http.StatusOK
	if len(res.Inserted) > 0 {
		status = http.StatusCreated
	}

	c.JSON(status, models.SubmitResponse{
		TotalReceived: len(req.Events),
		Inserted:      len(res.Inserted),
		Duplicates:    len(res.Duplicates),
		Rejected:      rejected,
	})
}
