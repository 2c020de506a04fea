package serverutils

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"metabolic-model-be/pkg/warehouse"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "caller"

// ProjectClaims carries the projects the bearer belongs to.
type ProjectClaims struct {
	Projects []int64 `json:"prj"`
	jwt.RegisteredClaims
}

// Authenticator verifies bearer tokens: RS256 with the configured public
// key, HS256 with the shared secret. Either may be absent.
type Authenticator struct {
	secret    []byte
	publicKey *rsa.PublicKey
}

func NewAuthenticator(secret, publicKeyPEM string) (*Authenticator, error) {
	a := &Authenticator{}
	if secret != "" {
		a.secret = []byte(secret)
	}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		a.publicKey = key
	}
	return a, nil
}

func (a *Authenticator) keyFunc(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if a.publicKey != nil {
			return a.publicKey, nil
		}
	case *jwt.SigningMethodHMAC:
		if a.secret != nil {
			return a.secret, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
}

// Parse returns the caller a token stands for.
func (a *Authenticator) Parse(token string) (warehouse.Caller, error) {
	claims := &ProjectClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, a.keyFunc, jwt.WithValidMethods([]string{"RS256", "HS256"}))
	if err != nil || !parsed.Valid {
		return warehouse.Caller{}, fmt.Errorf("invalid token: %w", err)
	}
	return warehouse.Caller{Token: token, Projects: claims.Projects}, nil
}

// Middleware stores the caller in the request locals. Requests without a
// token continue anonymously; an invalid token is rejected with 401.
func (a *Authenticator) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			ctx.Locals(callerKey, warehouse.Caller{})
			return ctx.Next()
		}
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Malformed authorization header"))
		}
		caller, err := a.Parse(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}
		ctx.Locals(callerKey, caller)
		return ctx.Next()
	}
}

// CallerFrom returns the caller stored by Middleware, or an anonymous one.
func CallerFrom(ctx *fiber.Ctx) warehouse.Caller {
	if caller, ok := ctx.Locals(callerKey).(warehouse.Caller); ok {
		return caller
	}
	return warehouse.Caller{}
}
