package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fipetracker/server/internal/models"
)

const (
	defaultLimit      = 10
	maxLimit          = 100
	defaultBucketSize = 10000
)

// queryMonth reads the month query parameter, defaulting to the latest
// reference month.
func (h *Handler) queryMonth(ctx context.Context, c *gin.Context) (time.Time, error) {
	month, err := models.ParseMonth(c.Query("month"))
	if err != nil || !month.IsZero() {
		return month, err
	}
	latest, err := h.db.LatestMonth(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return latest.MonthDate, nil
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer, got %q", models.ErrInvalidRequest, raw)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func (h *Handler) GetBrandStatistics(c *gin.Context) {
	brand := c.Query("brand")
	if brand == "" {
		h.respondError(c, fmt.Errorf("%w: brand is required", models.ErrInvalidRequest), "")
		return
	}
	ctx := c.Request.Context()
	month, err := h.queryMonth(ctx, c)
	if err != nil {
		h.respondError(c, err, "Failed to resolve month")
		return
	}

	st, err := h.db.GetBrandStatistics(ctx, month, brand)
	if err != nil {
		h.respondError(c, err, "Failed to get brand statistics")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetCheapest(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	ctx := c.Request.Context()
	month, err := h.queryMonth(ctx, c)
	if err != nil {
		h.respondError(c, err, "Failed to resolve month")
		return
	}

	cars, err := h.db.GetCheapestInMonth(ctx, month, limit)
	if err != nil {
		h.respondError(c, err, "Failed to get cheapest vehicles")
		return
	}
	c.JSON(http.StatusOK, cars)
}

func (h *Handler) GetPriceDistribution(c *gin.Context) {
	bucket := float64(defaultBucketSize)
	if raw := c.Query("bucket"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: invalid bucket %q", models.ErrInvalidRequest, raw), "")
			return
		}
		bucket = v
	}
	ctx := c.Request.Context()
	month, err := h.queryMonth(ctx, c)
	if err != nil {
		h.respondError(c, err, "Failed to resolve month")
		return
	}

	buckets, err := h.db.GetPriceDistribution(ctx, month, bucket)
	if err != nil {
		h.respondError(c, err, "Failed to get price distribution")
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *Handler) GetFuelTypes(c *gin.Context) {
	ctx := c.Request.Context()
	month, err := h.queryMonth(ctx, c)
	if err != nil {
		h.respondError(c, err, "Failed to resolve month")
		return
	}

	fuels, err := h.db.GetFuelTypeComparison(ctx, month)
	if err != nil {
		h.respondError(c, err, "Failed to get fuel type comparison")
		return
	}
	c.JSON(http.StatusOK, fuels)
}

func (h *Handler) GetMarketLeaders(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	ctx := c.Request.Context()
	month, err := h.queryMonth(ctx, c)
	if err != nil {
		h.respondError(c, err, "Failed to resolve month")
		return
	}

	leaders, err := h.db.GetMarketLeaders(ctx, month, limit)
	if err != nil {
		h.respondError(c, err, "Failed to get market leaders")
		return
	}
	c.JSON(http.StatusOK, leaders)
}

// Search matches q against model and brand names. Prices are only joined
// when a month is given.
func (h *Handler) Search(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	month, err := models.ParseMonth(c.Query("month"))
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	results, err := h.db.SearchModels(c.Request.Context(), c.Query("q"), month, limit)
	if err != nil {
		h.respondError(c, err, "Failed to search models")
		return
	}
	c.JSON(http.StatusOK, results)
}
