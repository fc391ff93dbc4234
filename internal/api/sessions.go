package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fipetracker/server/internal/models"
)

type AddVehicleRequest struct {
	YearID uint `json:"year_id" binding:"required"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	c.JSON(http.StatusCreated, h.sessions.Create())
}

func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to get session")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

// AddSessionVehicle resolves the vehicle in the catalogue before adding it,
// so a session only ever holds existing vehicles.
func (h *Handler) AddSessionVehicle(c *gin.Context) {
	var req AddVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: year_id is required", models.ErrInvalidRequest), "")
		return
	}

	info, err := h.db.GetVehicleInfo(c.Request.Context(), req.YearID)
	if err != nil {
		h.respondError(c, err, "Failed to get vehicle")
		return
	}

	s, err := h.sessions.AddVehicle(c.Param("id"), *info)
	if err != nil {
		h.respondError(c, err, "Failed to add vehicle")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) RemoveSessionVehicle(c *gin.Context) {
	yearID, err := parseID(c, "year_id")
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	s, err := h.sessions.RemoveVehicle(c.Param("id"), yearID)
	if err != nil {
		h.respondError(c, err, "Failed to remove vehicle")
		return
	}
	c.JSON(http.StatusOK, s)
}
