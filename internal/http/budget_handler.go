package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/service"
)

type kekvRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name"`
	PlannedAmount decimal.Decimal `json:"planned_amount"`
}

type createBudgetRequest struct {
	Name        string           `json:"name" binding:"required"`
	Type        string           `json:"type"`
	Date        string           `json:"date" binding:"required"`
	Description string           `json:"description"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	KEKV        []kekvRequest    `json:"kekv"`
}

func (h *Handler) createBudget(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createBudgetRequest
	if !h.bind(c, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	kekvs := make([]service.KEKVInput, 0, len(req.KEKV))
	for _, item := range req.KEKV {
		kekvs = append(kekvs, service.KEKVInput{Code: item.Code, Name: item.Name, PlannedAmount: item.PlannedAmount})
	}

	budget, err := h.budgets.Create(c.Request.Context(), service.CreateBudgetInput{
		Principal:   principal,
		Name:        req.Name,
		Type:        req.Type,
		Date:        date,
		Description: req.Description,
		TotalAmount: req.TotalAmount,
		KEKVs:       kekvs,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, budget)
}

func (h *Handler) listBudgets(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	budgets, err := h.budgets.List(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, budgets)
}

func (h *Handler) getBudget(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	budget, err := h.budgets.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}

func (h *Handler) budgetReport(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	file, err := h.budgets.Report(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.sendFile(c, file)
}
