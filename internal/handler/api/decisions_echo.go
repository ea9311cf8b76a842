package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	models "EdgePulse/internal/domain/models"
	domrepo "EdgePulse/internal/domain/repository"
	icache "EdgePulse/internal/service/cache"
	"EdgePulse/internal/service/ratelimit"
	"EdgePulse/internal/usecase"
	xhttp "EdgePulse/pkg/http"
	xlogger "EdgePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	latestDecisionKey = "edgepulse:decision:latest"
	latestDecisionTTL = 15 * time.Second
)

// DecisionsEchoHandler exposes the decision pipeline over HTTP.
type DecisionsEchoHandler struct {
	logger  *xlogger.Logger
	orch    *usecase.CycleOrchestrator
	store   domrepo.DecisionStore
	cache   icache.BytesCache
	limiter *ratelimit.Limiter
}

func NewDecisionsEchoHandler(
	logger *xlogger.Logger,
	orch *usecase.CycleOrchestrator,
	store domrepo.DecisionStore,
	cache icache.BytesCache,
	limiter *ratelimit.Limiter,
) *DecisionsEchoHandler {
	return &DecisionsEchoHandler{logger: logger, orch: orch, store: store, cache: cache, limiter: limiter}
}

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/decision", h.Decision)
	g.POST("/cycle", h.Cycle)
	g.GET("/recent", h.Recent)
	e.GET("/healthz", h.Health)
}

// Decision returns the most recent decision, serving from the short-lived
// cache when one is fresh and running a cycle otherwise.
func (h *DecisionsEchoHandler) Decision(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.checkSymbol(c, req.Symbol); err != nil {
		return err
	}
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(c.Request().Context(), latestDecisionKey); err == nil && ok {
			var d models.TradingDecision
			if err := json.Unmarshal(b, &d); err == nil {
				return xhttp.SuccessResponse(c, &d)
			}
		}
	}
	return h.runCycle(c, "decision")
}

// Cycle is the explicit trigger endpoint used by operators and schedulers.
// It always runs a fresh cycle, never the cache.
func (h *DecisionsEchoHandler) Cycle(c echo.Context) error {
	req := &models.CycleRequest{}
	// echo only binds query params on GET/DELETE; cycle triggers pass the
	// symbol as ?symbol= on a POST
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.checkSymbol(c, req.Symbol); err != nil {
		return err
	}
	return h.runCycle(c, "cycle")
}

// checkSymbol rejects requests that name a symbol other than the one this
// instance trades. An empty symbol means "whatever you trade".
func (h *DecisionsEchoHandler) checkSymbol(c echo.Context, symbol string) error {
	if symbol == "" || strings.EqualFold(symbol, h.orch.Symbol()) {
		return nil
	}
	return xhttp.AppErrorResponse(c,
		xhttp.NewAppError("ERR_UNKNOWN_SYMBOL", "", "symbol is not traded by this instance", http.StatusNotFound))
}

func (h *DecisionsEchoHandler) runCycle(c echo.Context, key string) error {
	if h.limiter != nil && !h.limiter.Allow(key, 5, 1) {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many cycle triggers", http.StatusTooManyRequests))
	}

	d, err := h.orch.RunCycle(c.Request().Context())
	if errors.Is(err, usecase.ErrCycleRunning) {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_CYCLE_RUNNING", "", "a decision cycle is already in flight", http.StatusConflict))
	}
	if err != nil {
		h.logger.Error("cycle usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(d); err == nil {
			if err := h.cache.SetBytes(c.Request().Context(), latestDecisionKey, b, latestDecisionTTL); err != nil {
				h.logger.Warn("decision cache write failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *DecisionsEchoHandler) Recent(c echo.Context) error {
	req := &models.RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_NO_STORE", "", "decision history is not configured", http.StatusNotImplemented))
	}

	rows, err := h.store.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("recent decisions query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DecisionsEchoHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["decision_store"] = err.Error()
		}
	}
	if h.orch.Running() {
		status["cycle"] = "running"
	}
	return xhttp.SuccessResponse(c, status)
}
