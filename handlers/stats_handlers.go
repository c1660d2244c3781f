// api/handlers/stats_handlers.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsestream/api/models"
	"pulsestream/api/utils"
)

// StatsReader is the read-only aggregation surface of the analytical store.
type StatsReader interface {
	GetDAU(ctx context.Context, from, to time.Time) ([]models.DAUBucket, error)
	GetTopEvents(ctx context.Context, from, to time.Time, limit int) ([]models.TopEvent, error)
	GetRetention(ctx context.Context, startDate time.Time, windows int) (models.RetentionResponse, error)
}

type StatsHandlers struct {
	Analytics StatsReader
}

func NewStatsHandlers(analytics StatsReader) *StatsHandlers {
	return &StatsHandlers{Analytics: analytics}
}

// dateRange parses the from/to query parameters. Both dates are inclusive on
// the wire; the returned range is half-open [from, to+1d) for querying.
func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := utils.ParseDateParam(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' " + err.Error()})
		return time.Time{}, time.Time{}, false
	}
	to, err := utils.ParseDateParam(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' " + err.Error()})
		return time.Time{}, time.Time{}, false
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' date must be before or equal to 'to' date"})
		return time.Time{}, time.Time{}, false
	}
	return from, to.AddDate(0, 0, 1), true
}

// GetDAU handles GET /stats/dau?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *StatsHandlers) GetDAU(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Analytics.GetDAU(ctx, from, to)
	if err != nil {
		log.Error().Err(err).Msg("daily active users query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch daily active users"})
		return
	}
	if results == nil {
		results = []models.DAUBucket{}
	}

	c.JSON(http.StatusOK, results)
}

// GetTopEvents handles GET /stats/top-events?from=...&to=...&limit=N.
func (h *StatsHandlers) GetTopEvents(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'limit' must be an integer between 1 and 100"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Analytics.GetTopEvents(ctx, from, to, limit)
	if err != nil {
		log.Error().Err(err).Msg("top events query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch top events"})
		return
	}
	if results == nil {
		results = []models.TopEvent{}
	}

	c.JSON(http.StatusOK, results)
}

// GetRetention handles GET /stats/retention?start_date=YYYY-MM-DD&windows=N.
func (h *StatsHandlers) GetRetention(c *gin.Context) {
	startDate, err := utils.ParseDateParam(c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'start_date' " + err.Error()})
		return
	}

	windows := 3
	if v := c.Query("windows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'windows' must be an integer between 1 and 12"})
			return
		}
		windows = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.Analytics.GetRetention(ctx, startDate, windows)
	if err != nil {
		log.Error().Err(err).Msg("retention query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to calculate retention"})
		return
	}

	c.JSON(http.StatusOK, result)
}
