package xhttp

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimasrn/credit-gateway/pkg/logger"
)

const userIDKey = "auth_user_id"
const userEmailKey = "auth_user_email"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is what the identity provider signs. Subject carries the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware rejects requests without a valid HS256 bearer token and
// stores the token subject for UserID.
func AuthMiddleware(secret []byte) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return func(ctx *RequestCtx) {
			claims, err := ParseToken(secret, bearer(ctx))
			if err != nil {
				logger.Debug("[xhttp] auth rejected", "path", string(ctx.Path()), "error", err)
				ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
				writeJSONError(ctx, StatusUnauthorized, "unauthorized")
				return
			}
			ctx.SetUserValue(userIDKey, claims.Subject)
			if claims.Email != "" {
				ctx.SetUserValue(userEmailKey, claims.Email)
			}
			next(ctx)
		}
	}
}

// ParseToken validates signature, algorithm, expiry and a non-empty subject.
func ParseToken(secret []byte, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(secret) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs a token for userID. Used by the CLI and tests; production
// tokens come from the identity provider.
func IssueToken(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// UserID returns the authenticated user id, empty when the request was not
// authenticated.
func UserID(ctx *RequestCtx) string {
	v, _ := ctx.UserValue(userIDKey).(string)
	return v
}

func UserEmail(ctx *RequestCtx) string {
	v, _ := ctx.UserValue(userEmailKey).(string)
	return v
}

// SetUserID is for tests that drive handlers without the middleware.
func SetUserID(ctx *RequestCtx, userID string) {
	ctx.SetUserValue(userIDKey, userID)
}

func bearer(ctx *RequestCtx) string {
	h := ctx.Request.Header.Peek("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !bytes.EqualFold(h[:len(prefix)], []byte(prefix)) {
		return ""
	}
	return string(bytes.TrimSpace(h[len(prefix):]))
}
