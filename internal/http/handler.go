package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/koshtorys/internal/excel"
	"github.com/nurpe/koshtorys/internal/http/middleware"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
	"github.com/nurpe/koshtorys/internal/service"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Budgets        *service.BudgetService
	Contracts      *service.ContractService
	Specifications *service.SpecificationService
	Imports        *service.ImportService
	Vehicles       *service.VehicleService
	// Health reports whether storage is reachable.
	Health func(ctx context.Context) error
}

type Handler struct {
	budgets   *service.BudgetService
	contracts *service.ContractService
	specs     *service.SpecificationService
	imports   *service.ImportService
	vehicles  *service.VehicleService
	health    func(ctx context.Context) error
	log       zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		budgets:   services.Budgets,
		contracts: services.Contracts,
		specs:     services.Specifications,
		imports:   services.Imports,
		vehicles:  services.Vehicles,
		health:    services.Health,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", h.healthz)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/budgets", h.listBudgets)
	protected.POST("/budgets", h.createBudget)
	protected.GET("/budgets/:id", h.getBudget)
	protected.GET("/budgets/:id/report", h.budgetReport)

	protected.GET("/contracts", h.listContracts)
	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.DELETE("/contracts/:id", h.deleteContract)
	protected.PATCH("/contracts/:id/status", h.updateContractStatus)
	protected.GET("/contracts/:id/pdf", h.contractPDF)
	protected.GET("/contracts/:id/specifications", h.listSpecifications)
	protected.POST("/contracts/:id/specifications", h.addSpecification)

	protected.POST("/specifications/import", h.importSpecifications)
	protected.GET("/specifications/template", h.specificationTemplate)
	protected.PUT("/specifications/:id", h.editSpecification)
	protected.DELETE("/specifications/:id", h.deleteSpecification)
	protected.GET("/specifications/:id/usage", h.listUsage)
	protected.POST("/specifications/:id/usage", h.recordUsage)

	protected.GET("/vehicles", h.listVehicles)
	protected.POST("/vehicles", h.createVehicle)
	protected.POST("/vehicles/import", h.importVehicles)
	protected.GET("/vehicles/:id", h.getVehicle)
	protected.PUT("/vehicles/:id", h.updateVehicle)
	protected.DELETE("/vehicles/:id", h.deleteVehicle)
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) sendFile(c *gin.Context, file *service.FileResult) {
	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var (
		mismatch    *ledger.AmountMismatchError
		capacity    *ledger.CapacityExceededError
		exceeded    *ledger.ContractAmountExceededError
		remaining   *ledger.InsufficientRemainingError
		invalidEdit *ledger.InvalidEditError
		rowErr      *excel.RowError
	)

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &mismatch):
		rejected(c, err, gin.H{"declared": money.Format(mismatch.Declared), "computed": money.Format(mismatch.Computed)})
	case errors.As(err, &capacity):
		rejected(c, err, gin.H{"scope": capacity.Scope, "available": money.Format(capacity.Available), "requested": money.Format(capacity.Requested)})
	case errors.As(err, &exceeded):
		rejected(c, err, gin.H{"contract_amount": money.Format(exceeded.ContractAmount), "new_total": money.Format(exceeded.NewTotal)})
	case errors.As(err, &remaining):
		rejected(c, err, gin.H{"remaining": remaining.Remaining.String(), "requested": remaining.Requested.String()})
	case errors.Is(err, ledger.ErrHasUsageHistory):
		rejected(c, err, nil)
	case errors.As(err, &invalidEdit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "details": gin.H{"consumed": invalidEdit.Consumed.String(), "quantity": invalidEdit.Quantity.String()}})
	case errors.As(err, &rowErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "details": gin.H{"row": rowErr.Row}})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidItem),
		errors.Is(err, excel.ErrSheetMissing),
		errors.Is(err, excel.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStorageUnavailable):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func rejected(c *gin.Context, err error, details gin.H) {
	body := gin.H{"error": err.Error()}
	if details != nil {
		body["details"] = details
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
		"02.01.2006",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func parseOptionalID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, service.ErrInvalidInput
	}
	return &id, nil
}
