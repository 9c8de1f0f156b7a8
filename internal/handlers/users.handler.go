package handlers

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/credit-gateway/internal/model"
	xhttp "github.com/nimasrn/credit-gateway/pkg/http"
)

type UserHandler struct {
	ledger LedgerService
}

func RegisterUserRoutes(e *router.Group, h *UserHandler, auth xhttp.MiddlewareFunc) {
	e.POST("/users/me", auth(h.RegisterMe))
}

func NewUserHandler(ledger LedgerService) *UserHandler {
	return &UserHandler{ledger: ledger}
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RegisterMe creates the caller's ledger account on first sign-in. The body
// is optional; the token email is used when it carries none.
func (h *UserHandler) RegisterMe(ctx *xhttp.RequestCtx) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req registerRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	if req.Email == "" {
		req.Email = xhttp.UserEmail(ctx)
	}

	user, err := h.ledger.RegisterUser(ctx, model.RegisterUserRequest{
		ID:    userID,
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, user)
}
