package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/service"
)

type editSpecificationRequest struct {
	Name         *string          `json:"name"`
	Code         *string          `json:"code"`
	Unit         *string          `json:"unit"`
	Quantity     *decimal.Decimal `json:"quantity"`
	Price        *decimal.Decimal `json:"price"`
	ServiceCount *int             `json:"service_count"`
	Section      *model.Section   `json:"section"`
}

type recordUsageRequest struct {
	QuantityUsed   decimal.Decimal `json:"quantity_used"`
	Description    string          `json:"description"`
	DocumentNumber string          `json:"document_number"`
}

func (h *Handler) listSpecifications(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	specs, err := h.specs.List(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, specs)
}

func (h *Handler) addSpecification(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var item model.LineItem
	if !h.bind(c, &item) {
		return
	}
	spec, err := h.specs.Add(c.Request.Context(), principal, id, item)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, spec)
}

func (h *Handler) editSpecification(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req editSpecificationRequest
	if !h.bind(c, &req) {
		return
	}
	spec, err := h.specs.Edit(c.Request.Context(), principal, id, ledger.SpecificationEdit{
		Name:         req.Name,
		Code:         req.Code,
		Unit:         req.Unit,
		Quantity:     req.Quantity,
		Price:        req.Price,
		ServiceCount: req.ServiceCount,
		Section:      req.Section,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, spec)
}

func (h *Handler) deleteSpecification(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.specs.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listUsage(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	records, err := h.specs.Usage(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) recordUsage(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req recordUsageRequest
	if !h.bind(c, &req) {
		return
	}
	spec, err := h.specs.RecordUsage(c.Request.Context(), service.RecordUsageInput{
		Principal:       principal,
		SpecificationID: id,
		UsageInput: ledger.UsageInput{
			QuantityUsed:   req.QuantityUsed,
			Description:    req.Description,
			DocumentNumber: req.DocumentNumber,
		},
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, spec)
}

// importSpecifications parses an uploaded xlsx or csv into line items
// ready to be submitted with a new contract.
func (h *Handler) importSpecifications(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
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

	kekv := c.PostForm("kekv")
	if kekv == "" {
		kekv = c.Query("kekv")
	}
	result, err := h.imports.Import(c.Request.Context(), service.ImportInput{
		KEKVCode: kekv,
		FileName: header.Filename,
		Content:  file,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) specificationTemplate(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}
	file, err := h.imports.Template(c.Query("kekv"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.sendFile(c, file)
}
