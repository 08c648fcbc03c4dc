package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/repository"
	"github.com/nurpe/koshtorys/internal/service"
)

type createContractRequest struct {
	BudgetID       uuid.UUID            `json:"budget_id" binding:"required"`
	KEKVID         uuid.UUID            `json:"kekv_id" binding:"required"`
	Number         string               `json:"number" binding:"required"`
	Name           string               `json:"name"`
	DKCode         string               `json:"dk_code"`
	DKName         string               `json:"dk_name"`
	Contractor     string               `json:"contractor" binding:"required"`
	Amount         decimal.Decimal      `json:"amount"`
	StartDate      string               `json:"start_date" binding:"required"`
	EndDate        string               `json:"end_date" binding:"required"`
	Status         model.ContractStatus `json:"status"`
	Specifications []model.LineItem     `json:"specifications"`
}

type updateStatusRequest struct {
	Status model.ContractStatus `json:"status" binding:"required"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createContractRequest
	if !h.bind(c, &req) {
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), service.CreateContractInput{
		Principal:      principal,
		BudgetID:       req.BudgetID,
		KEKVID:         req.KEKVID,
		Number:         req.Number,
		Name:           req.Name,
		DKCode:         req.DKCode,
		DKName:         req.DKName,
		Contractor:     req.Contractor,
		Amount:         req.Amount,
		StartDate:      start,
		EndDate:        end,
		Status:         req.Status,
		Specifications: req.Specifications,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) listContracts(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	budgetID, err := parseOptionalID(c.Query("budget_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid budget_id"})
		return
	}
	kekvID, err := parseOptionalID(c.Query("kekv_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kekv_id"})
		return
	}
	filter := repository.ContractFilter{BudgetID: budgetID, KEKVID: kekvID}
	if raw := c.Query("status"); raw != "" {
		status := model.ContractStatus(raw)
		filter.Status = &status
	}

	contracts, err := h.contracts.List(c.Request.Context(), service.ListContractsInput{Principal: principal, Filter: filter})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contracts)
}

func (h *Handler) getContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) deleteContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.contracts.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateContractStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !h.bind(c, &req) {
		return
	}
	contract, err := h.contracts.UpdateStatus(c.Request.Context(), principal, id, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) contractPDF(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	file, err := h.contracts.Printout(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.sendFile(c, file)
}
