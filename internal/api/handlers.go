package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fipetracker/server/config"
	"fipetracker/server/internal/comparison"
	"fipetracker/server/internal/database"
	"fipetracker/server/internal/models"
	"fipetracker/server/internal/options"
	"fipetracker/server/internal/session"
)

type Handler struct {
	db         *database.Database
	logger     *logrus.Logger
	cfg        *config.Config
	options    *options.Service
	aggregator *comparison.Aggregator
	sessions   *session.Store
}

type DateRange struct {
	StartDate string `json:"start_date" form:"start_date"`
	EndDate   string `json:"end_date" form:"end_date"`
}

type ChartDataRequest struct {
	YearID uint `json:"year_id" binding:"required"`
	DateRange
}

type CompareRequest struct {
	VehicleIDs []uint `json:"vehicle_ids"`
	SessionID  string `json:"session_id"`
	View       string `json:"view"`
	DateRange
}

// NewHandler wires the request handlers. inflation may be nil to disable
// real depreciation figures.
func NewHandler(db *database.Database, cfg *config.Config, inflation comparison.InflationProvider, sessions *session.Store, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if sessions == nil {
		sessions = session.NewStore(cfg.Session.TTL, logger)
	}

	return &Handler{
		db:         db,
		logger:     logger,
		cfg:        cfg,
		options:    options.NewService(db, cfg.Options.LatestMonthOnly, logger),
		aggregator: comparison.NewAggregator(db, inflation, cfg.Compare.Workers, cfg.Compare.FetchTimeout, logger),
		sessions:   sessions,
	}
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRange), errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes caller errors as they are and hides server errors
// behind msg.
func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error(msg)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	body := gin.H{"error": err.Error()}
	var vErr *models.VehicleError
	if errors.As(err, &vErr) {
		body["model_year_id"] = vErr.ModelYearID
	}
	c.JSON(status, body)
}

func parseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", models.ErrInvalidRequest, name, raw)
	}
	return uint(id), nil
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Error("Database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetBrands(c *gin.Context) {
	brands, err := h.db.ListBrands(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to get brands")
		return
	}
	c.JSON(http.StatusOK, brands)
}

func (h *Handler) GetModels(c *gin.Context) {
	brandID, err := parseID(c, "brand_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	carModels, err := h.db.ListModels(c.Request.Context(), brandID)
	if err != nil {
		h.respondError(c, err, "Failed to get models")
		return
	}
	c.JSON(http.StatusOK, carModels)
}

func (h *Handler) GetYears(c *gin.Context) {
	modelID, err := parseID(c, "model_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	years, err := h.db.ListYears(c.Request.Context(), modelID)
	if err != nil {
		h.respondError(c, err, "Failed to get years")
		return
	}
	c.JSON(http.StatusOK, years)
}

func (h *Handler) GetMonths(c *gin.Context) {
	months, err := h.db.ListMonths(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to get months")
		return
	}
	c.JSON(http.StatusOK, months)
}

// GetOptions returns the option index of a brand.
func (h *Handler) GetOptions(c *gin.Context) {
	brandID, err := parseID(c, "brand_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	idx, err := h.options.BuildIndex(c.Request.Context(), brandID)
	if err != nil {
		h.respondError(c, err, "Failed to build vehicle options")
		return
	}
	c.JSON(http.StatusOK, idx)
}

// FilterOptions narrows a brand's options by the current dropdown selection.
func (h *Handler) FilterOptions(c *gin.Context) {
	brandID, err := parseID(c, "brand_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	var sel options.Selection
	if raw := c.Query("model_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: invalid model_id %q", models.ErrInvalidRequest, raw), "")
			return
		}
		sel.ModelID = uint(id)
	}
	sel.Year = c.Query("year")

	idx, err := h.options.BuildIndex(c.Request.Context(), brandID)
	if err != nil {
		h.respondError(c, err, "Failed to build vehicle options")
		return
	}
	choices, err := idx.Filter(sel)
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, choices)
}

func (h *Handler) GetVehicle(c *gin.Context) {
	id, err := parseID(c, "year_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	info, err := h.db.GetVehicleInfo(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get vehicle")
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetChartData returns the price history and statistics of one vehicle.
func (h *Handler) GetChartData(c *gin.Context) {
	var req ChartDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: year_id is required", models.ErrInvalidRequest), "")
		return
	}
	rng, err := models.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	res, err := h.aggregator.Compare(c.Request.Context(), comparison.Request{
		ModelYearIDs: []uint{req.YearID},
		Range:        rng,
	})
	if err != nil {
		h.respondError(c, err, "An error occurred while fetching data")
		return
	}

	entry := res.Vehicles[0]
	c.JSON(http.StatusOK, gin.H{
		"car_info":   entry.Vehicle,
		"data":       entry.Series,
		"statistics": entry.Statistics,
		"inflation":  res.Inflation,
	})
}

// Compare returns up to five vehicles over a shared range. The vehicles
// come from vehicle_ids or, when that is empty, from a session.
func (h *Handler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: malformed body: %v", models.ErrInvalidRequest, err), "")
		return
	}
	rng, err := models.ParseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	var indexed bool
	switch req.View {
	case "", "absolute":
	case "indexed":
		indexed = true
	default:
		h.respondError(c, fmt.Errorf("%w: unknown view %q", models.ErrInvalidRequest, req.View), "")
		return
	}

	ids := req.VehicleIDs
	if len(ids) == 0 && req.SessionID != "" {
		s, err := h.sessions.Get(req.SessionID)
		if err != nil {
			h.respondError(c, err, "")
			return
		}
		ids = s.ModelYearIDs()
	}

	res, err := h.aggregator.Compare(c.Request.Context(), comparison.Request{
		ModelYearIDs: ids,
		Range:        rng,
		Indexed:      indexed,
	})
	if err != nil {
		h.respondError(c, err, "An error occurred while comparing vehicles")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetDefaultCar returns the initial selection, or 204 when the configured
// default does not exist in the catalogue.
func (h *Handler) GetDefaultCar(c *gin.Context) {
	def, err := h.db.FindDefaultVehicle(c.Request.Context(), h.cfg.Defaults.Brand, h.cfg.Defaults.Model)
	if err != nil {
		h.respondError(c, err, "Failed to find default vehicle")
		return
	}
	if def == nil {
		h.logger.WithFields(logrus.Fields{
			"brand": h.cfg.Defaults.Brand,
			"model": h.cfg.Defaults.Model,
		}).Warn("Default vehicle not found")
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, def)
}
