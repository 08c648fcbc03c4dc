package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/service"
)

type vehicleRequest struct {
	Model          string      `json:"model"`
	MilitaryNumber string      `json:"military_number"`
	VIN            string      `json:"vin" binding:"required"`
	Location       string      `json:"location"`
	Year           int         `json:"year"`
	Status         string      `json:"status"`
	Notes          string      `json:"notes"`
	ContractIDs    []uuid.UUID `json:"contract_ids"`
}

func (r vehicleRequest) input(principal model.Principal) service.VehicleInput {
	return service.VehicleInput{
		Principal:      principal,
		Model:          r.Model,
		MilitaryNumber: r.MilitaryNumber,
		VIN:            r.VIN,
		Location:       r.Location,
		Year:           r.Year,
		Status:         r.Status,
		Notes:          r.Notes,
		ContractIDs:    r.ContractIDs,
	}
}

func (h *Handler) listVehicles(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	vehicles, err := h.vehicles.List(c.Request.Context(), principal, c.Query("search"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

func (h *Handler) getVehicle(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	vehicle, err := h.vehicles.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) createVehicle(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req vehicleRequest
	if !h.bind(c, &req) {
		return
	}
	vehicle, err := h.vehicles.Create(c.Request.Context(), req.input(principal))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func (h *Handler) updateVehicle(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req vehicleRequest
	if !h.bind(c, &req) {
		return
	}
	vehicle, err := h.vehicles.Update(c.Request.Context(), id, req.input(principal))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) deleteVehicle(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.vehicles.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) importVehicles(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	result, err := h.vehicles.Import(c.Request.Context(), principal, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
