package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) map[string]error
}

type HealthHandler struct {
	healthService HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(healthService HealthService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	res := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := xhttp.StatusOK

	for name, err := range h.healthService.Check(ctx) {
		if err != nil {
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			status = xhttp.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	writeJSON(ctx, status, res)
}
