package xhttp

import (
	"github.com/fasthttp/router"
)

type Router = router.Router

// CreateDefaultRouter returns a router that answers unknown paths and
// methods with the JSON error body used by every handler.
func CreateDefaultRouter() *Router {
	r := router.New()
	r.RedirectTrailingSlash = true
	r.RedirectFixedPath = true
	r.SaveMatchedRoutePath = true
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	writeJSONError(ctx, StatusNotFound, "not found")
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	writeJSONError(ctx, StatusMethodNotAllowed, "method not allowed")
}

func writeJSONError(ctx *RequestCtx, status int, msg string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(`{"error":"` + msg + `"}`)
}
