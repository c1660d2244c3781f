// api/handlers/deadletter_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
)

// DeadLetterQueue is the operator surface over dead-lettered delivery tasks.
type DeadLetterQueue interface {
	ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error)
	RequeueDeadLetter(ctx context.Context, id uuid.UUID) error
}

type DeadLetterHandlers struct {
	Queue DeadLetterQueue
}

func NewDeadLetterHandlers(queue DeadLetterQueue) *DeadLetterHandlers {
	return &DeadLetterHandlers{Queue: queue}
}

// List handles GET /dead-letters?limit=N.
func (h *DeadLetterHandlers) List(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'limit' must be an integer between 1 and 1000"})
			return
		}
		limit = n
	}

	letters, err := h.Queue.ListDeadLetters(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("dead letter listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}
	if letters == nil {
		letters = []models.DeadLetter{}
	}

	c.JSON(http.StatusOK, gin.H{
		"dead_letters": letters,
		"count":        len(letters),
	})
}

// Requeue handles POST /dead-letters/:id/requeue.
func (h *DeadLetterHandlers) Requeue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dead letter id"})
		return
	}

	if err := h.Queue.RequeueDeadLetter(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
			return
		}
		log.Error().Err(err).Stringer("task_id", id).Msg("dead letter requeue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue dead letter"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "dead letter requeued"})
}
