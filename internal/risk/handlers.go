package risk

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// Broadcaster pushes fresh assessments to streaming subscribers.
type Broadcaster interface {
	BroadcastAssessment(assessment *RiskAssessment)
}

// Handler provides HTTP endpoints for risk operations.
type Handler struct {
	facade      *Facade
	broadcaster Broadcaster
}

// NewHandler creates a new risk handler. broadcaster may be nil.
func NewHandler(facade *Facade, broadcaster Broadcaster) *Handler {
	return &Handler{facade: facade, broadcaster: broadcaster}
}

// RegisterRoutes sets up risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/risk/:address", h.GetAssessment)
	r.POST("/risk/:address/refresh", h.RefreshAssessment)
	r.GET("/risk/:address/interest-rate", h.GetInterestRate)
	r.GET("/risk/:address/warnings", h.GetWarnings)
	r.GET("/risk/:address/features", h.GetFeatures)
}

// address extracts and validates the borrower address path parameter.
func address(c *gin.Context) (string, bool) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "Address must be a 20-byte hex address",
		})
		return "", false
	}
	return addr, true
}

// GetAssessment handles GET /v1/risk/:address
func (h *Handler) GetAssessment(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}

	assessment, err := h.facade.AssessRisk(c.Request.Context(), addr, Options{})
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrScoringUnavailable) {
			status = http.StatusServiceUnavailable
			code = "scoring_unavailable"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// RefreshAssessment handles POST /v1/risk/:address/refresh
func (h *Handler) RefreshAssessment(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}

	assessment, err := h.facade.AssessRisk(c.Request.Context(), addr, Options{ForceRefresh: true})
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrScoringUnavailable) {
			status = http.StatusServiceUnavailable
			code = "scoring_unavailable"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastAssessment(assessment)
	}

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// GetInterestRate handles GET /v1/risk/:address/interest-rate
func (h *Handler) GetInterestRate(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}

	market := MarketConditions{}
	if v := c.Query("base_rate"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			market.BaseRate = parsed
		}
	}
	if v := c.Query("max_premium"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			market.MaxPremium = parsed
		}
	}

	c.JSON(http.StatusOK, gin.H{"interest_rate": h.facade.OptimalInterestRate(c.Request.Context(), addr, market)})
}

// GetWarnings handles GET /v1/risk/:address/warnings
func (h *Handler) GetWarnings(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}

	signals := h.facade.EarlyWarningSignals(c.Request.Context(), addr)
	c.JSON(http.StatusOK, gin.H{
		"signals": signals,
		"count":   len(signals),
	})
}

// GetFeatures handles GET /v1/risk/:address/features
func (h *Handler) GetFeatures(c *gin.Context) {
	addr, ok := address(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": h.facade.ExtractFeatures(c.Request.Context(), addr, nil)})
}
