package serverutils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/warehouse"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callerApp(a *Authenticator) *fiber.App {
	app := fiber.New()
	app.Use(a.Middleware())
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(CallerFrom(ctx))
	})
	return app
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, projects []int64, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, ProjectClaims{
		Projects:         projects,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, app *fiber.App, header string) (int, warehouse.Caller) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var caller warehouse.Caller
	if resp.StatusCode == 200 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&caller))
	}
	return resp.StatusCode, caller
}

func TestAuthenticatorHS256(t *testing.T) {
	a, err := NewAuthenticator("secret", "")
	require.NoError(t, err)
	app := callerApp(a)
	future := time.Now().Add(time.Hour)

	code, caller := get(t, app, "")
	assert.Equal(t, 200, code)
	assert.False(t, caller.Authenticated())

	token := sign(t, jwt.SigningMethodHS256, []byte("secret"), []int64{4, 9}, future)
	code, caller = get(t, app, "Bearer "+token)
	assert.Equal(t, 200, code)
	assert.Equal(t, []int64{4, 9}, caller.Projects)
	assert.True(t, caller.Member(9))

	tests := map[string]string{
		"wrong secret": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), nil, future),
		"expired":      "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), nil, time.Now().Add(-time.Hour)),
		"not bearer":   "Token " + token,
		"garbage":      "Bearer abc.def",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			code, _ := get(t, app, header)
			assert.Equal(t, 401, code)
		})
	}
}

func TestAuthenticatorRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	a, err := NewAuthenticator("", string(pemKey))
	require.NoError(t, err)
	app := callerApp(a)

	token := sign(t, jwt.SigningMethodRS256, key, []int64{1}, time.Now().Add(time.Hour))
	code, caller := get(t, app, "Bearer "+token)
	assert.Equal(t, 200, code)
	assert.Equal(t, []int64{1}, caller.Projects)

	// HS256 is refused when no secret is configured
	code, _ = get(t, app, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("x"), nil, time.Now().Add(time.Hour)))
	assert.Equal(t, 401, code)

	_, err = NewAuthenticator("", "not a key")
	assert.Error(t, err)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("load: %w", warehouse.ErrModelNotFound), 404},
		{warehouse.ErrForbidden, 403},
		{warehouse.ErrUnauthorized, 401},
		{fmt.Errorf("method: %w", flux.ErrUnsupportedMethod), 400},
		{fiber.NewError(fiber.StatusUnprocessableEntity, "bad"), 422},
		{fmt.Errorf("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware(nil))
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			if tt.code == 500 {
				assert.Equal(t, "Internal server error", body.Message)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		ModelID string `validate:"required"`
		Method  string `validate:"omitempty,oneof=fba pfba"`
	}
	assert.NoError(t, ValidateRequest(request{ModelID: "m"}))

	err := ValidateRequest(request{Method: "moma"})
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 400, fe.Code)
	assert.Contains(t, fe.Message, "request.ModelID is required")
	assert.Contains(t, fe.Message, "request.Method must be one of [fba pfba]")
}
