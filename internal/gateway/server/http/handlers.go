package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/strategyforge/gateway/internal/cache"
	"github.com/strategyforge/gateway/internal/observability"
	"github.com/strategyforge/gateway/internal/proxy"
)

// Request defaults.
const (
	DefaultSymbol         = "AAPL"
	DefaultRiskTolerance  = "medium"
	DefaultInitialCapital = 100000.0
	DefaultTopLimit       = 10
)

// GenerateStrategyRequest is the body of a strategy generation request.
type GenerateStrategyRequest struct {
	Symbol        string `json:"symbol"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	RiskTolerance string `json:"risk_tolerance"`
}

// RunBacktestRequest is the body of a backtest request.
type RunBacktestRequest struct {
	Strategy       map[string]interface{} `json:"strategy"`
	Symbol         string                 `json:"symbol"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	InitialCapital *float64               `json:"initial_capital"`
}

func (r *Router) generateStrategy(c *gin.Context) {
	var req GenerateStrategyRequest
	if !bindBody(c, &req) {
		return
	}
	if req.Symbol == "" {
		req.Symbol = DefaultSymbol
	}
	if req.RiskTolerance == "" {
		req.RiskTolerance = DefaultRiskTolerance
	}
	if missing := missingFields(map[string]bool{
		"start_date": req.StartDate == "",
		"end_date":   req.EndDate == "",
	}); missing != "" {
		writeEnvelope(c, http.StatusBadRequest, "Bad Request", missing)
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		writeEnvelope(c, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
		return
	}
	r.forward(c, proxy.OperationGenerateStrategy, proxy.Request{
		Method: http.MethodPost,
		Path:   PathGenerateStrategy,
		Body:   body,
	})
}

func (r *Router) runBacktest(c *gin.Context) {
	var req RunBacktestRequest
	if !bindBody(c, &req) {
		return
	}
	if missing := missingFields(map[string]bool{
		"strategy":   req.Strategy == nil,
		"symbol":     req.Symbol == "",
		"start_date": req.StartDate == "",
		"end_date":   req.EndDate == "",
	}); missing != "" {
		writeEnvelope(c, http.StatusBadRequest, "Bad Request", missing)
		return
	}
	if req.InitialCapital == nil {
		capital := DefaultInitialCapital
		req.InitialCapital = &capital
	}

	body, err := json.Marshal(req)
	if err != nil {
		writeEnvelope(c, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
		return
	}
	r.forward(c, proxy.OperationRunBacktest, proxy.Request{
		Method: http.MethodPost,
		Path:   PathRunBacktest,
		Body:   body,
	})
}

func (r *Router) topStrategies(c *gin.Context) {
	limit := DefaultTopLimit
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			writeEnvelope(c, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	key := cache.TopStrategiesKey(limit)
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.Header(CacheStatusHeader, "HIT")
			c.Data(http.StatusOK, "application/json", cached)
			return
		case !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled):
			r.logger.WithContext(ctx).Warn("response cache read failed",
				observability.String("key", key),
				observability.Error(err),
			)
		}
		c.Header(CacheStatusHeader, "MISS")
	}

	resp, ok := r.forward(c, proxy.OperationTopStrategies, proxy.Request{
		Method: http.MethodGet,
		Path:   PathTopStrategies + "?limit=" + strconv.Itoa(limit),
	})
	if !ok || r.cache == nil || !cacheable(resp) {
		return
	}
	if err := r.cache.Set(ctx, key, resp.Body, r.cacheTTL); err != nil &&
		!errors.Is(err, cache.ErrCacheDisabled) {
		r.logger.WithContext(ctx).Warn("response cache write failed",
			observability.String("key", key),
			observability.Error(err),
		)
	}
}

func (r *Router) backendHealth(c *gin.Context) {
	r.forward(c, proxy.OperationBackendHealth, proxy.Request{
		Method: http.MethodGet,
		Path:   PathBackendHealth,
	})
}

func (r *Router) circuitBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"circuitBreakers": r.breakers.Snapshots(),
	})
}

// cacheable reports whether resp is a successful backend answer. Fallbacks
// are never cached.
func cacheable(resp proxy.Response) bool {
	return resp.Source == proxy.SourceBackend &&
		resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// bindBody decodes the JSON body into obj, answering 400 (or 413 for an
// oversized body) when it cannot.
func bindBody(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeEnvelope(c, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeEnvelope(c, http.StatusBadRequest, "Bad Request", "Malformed JSON request body")
	return false
}

// missingFields lists the names flagged as missing, in a stable order.
func missingFields(flags map[string]bool) string {
	var names []string
	for _, name := range []string{"strategy", "symbol", "start_date", "end_date"} {
		if flags[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "missing required field(s): " + strings.Join(names, ", ")
}
