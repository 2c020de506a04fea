package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metabolic-model-be/internal/bootstrap"
	"metabolic-model-be/internal/config"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/server"
	"metabolic-model-be/pkg/metabolic/metabolictest"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "integration-secret"

type testServer struct {
	app       *fiber.App
	container *bootstrap.Container
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.json"), metabolictest.CoreJSON(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.json"), metabolictest.CoreJSON(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.meta.json"), []byte(`{"project_id": 7, "organism_id": 562}`), 0o644))

	cfg := &config.Config{
		App:        config.AppConfig{Port: "0", Environment: "test", CorsAllowedOrigins: "*"},
		Services:   config.ServicesConfig{HTTPTimeout: 5 * time.Second},
		Warehouse:  config.WarehouseConfig{Driver: "file", ModelsDir: dir},
		Deltas:     config.DeltaConfig{Store: "memory"},
		Auth:       config.AuthConfig{JWTSecret: jwtSecret},
		Simulation: config.SimulationConfig{Concurrency: 2},
	}

	ctx, cancel := context.WithCancel(context.Background())
	container, err := bootstrap.NewContainer(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		container.Close()
	})
	go container.WebSocketHub.Run(ctx)
	require.NoError(t, container.DeltaService.Consume(ctx))

	return &testServer{app: server.New(cfg, container).GetApp(), container: container}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, 30_000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func token(t *testing.T, projects ...int64) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"prj": projects,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	s.container.Registry.MarkReady()
	status, _ = s.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/model-info/core", "", "")

	status, body := s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "model_http_requests_total")
}

func TestModify(t *testing.T) {
	s := newTestServer(t)

	t.Run("operations", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/models/core/modify", `{"genotype": ["-pta"]}`, "")
		require.Equal(t, http.StatusOK, status, string(body))
		out := decode(t, body)
		ops := out["operations"].([]interface{})
		require.Len(t, ops, 1)
		assert.Equal(t, map[string]interface{}{"operation": "knockout", "type": "gene", "id": "b2297"}, ops[0])
		assert.Equal(t, []interface{}{}, out["warnings"])
	})

	t.Run("applier errors", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/models/core/modify",
			`{"measurements": [{"type": "reaction", "id": "NOPE", "measurements": [1]}]}`, "")
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, []interface{}{"Cannot find reaction 'NOPE' in the model"}, decode(t, body)["errors"])
	})

	t.Run("invalid measurement type", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/models/core/modify",
			`{"measurements": [{"type": "flux", "id": "PFK", "measurements": [1]}]}`, "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown model", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/models/nope/modify", `{}`, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestSimulate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		token  string
		status int
	}{
		{"stored model", `{"model_id": "core"}`, "", http.StatusOK},
		{"unknown model", `{"model_id": "missing"}`, "", http.StatusNotFound},
		{"restricted model without token", `{"model_id": "locked"}`, "", http.StatusUnauthorized},
		{"restricted model, other project", `{"model_id": "locked"}`, token(t, 1), http.StatusForbidden},
		{"restricted model, member", `{"model_id": "locked"}`, token(t, 7), http.StatusOK},
		{"unsupported method", `{"model_id": "core", "method": "dfba"}`, "", http.StatusBadRequest},
		{"nothing to simulate", `{}`, "", http.StatusBadRequest},
		{"invalid token", `{"model_id": "core"}`, "garbage", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/simulate", tt.body, tt.token)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	t.Run("payload", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/simulate", `{"model_id": "core", "method": "pfba"}`, "")
		require.Equal(t, http.StatusOK, status)
		out := decode(t, body)
		assert.Equal(t, "optimal", out["status"])
		assert.InDelta(t, 20.0/3, out["growth_rate"], 1e-6)
		assert.Contains(t, out["flux_distribution"], "PFK")
	})
}

func TestModifyThenSimulate(t *testing.T) {
	s := newTestServer(t)

	simulate := func(t *testing.T, modify string) map[string]interface{} {
		t.Helper()
		status, body := s.do(t, http.MethodPost, "/models/core/modify", modify, "")
		require.Equal(t, http.StatusOK, status, string(body))
		ops, err := json.Marshal(decode(t, body)["operations"])
		require.NoError(t, err)

		status, body = s.do(t, http.MethodPost, "/simulate",
			`{"model_id": "core", "method": "pfba", "operations": `+string(ops)+`}`, "")
		require.Equal(t, http.StatusOK, status, string(body))
		out := decode(t, body)
		assert.Equal(t, "optimal", out["status"])
		return out
	}

	t.Run("knockout and measured flux", func(t *testing.T) {
		out := simulate(t, `{"genotype": ["-b2297"],
			"measurements": [{"type": "reaction", "id": "PFK", "measurements": [4.8]}]}`)
		growth := out["growth_rate"].(float64)
		assert.Greater(t, growth, 0.0)
		assert.InDelta(t, 5.2, growth, 1e-6)
		fluxes := out["flux_distribution"].(map[string]interface{})
		assert.InDelta(t, 4.8, fluxes["PFK"], 1e-6)
		assert.InDelta(t, 0, fluxes["PTAr"], 1e-9)
	})

	t.Run("single growth measurement", func(t *testing.T) {
		out := simulate(t, `{"growth_rate": {"measurement": 0.3, "uncertainty": 0}}`)
		assert.InDelta(t, 0.3, out["growth_rate"], 1e-6)
	})

	t.Run("unreachable growth", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/models/core/modify", `{"growth_rate": {"measurements": [1000]},
			"measurements": [{"type": "reaction", "id": "PFK", "measurements": [4.8]}]}`, "")
		require.Equal(t, http.StatusBadRequest, status, string(body))
		errs := decode(t, body)["errors"].([]interface{})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "could not be reconciled")
	})
}

func TestModelEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/model-info/core", "", "")
	require.Equal(t, http.StatusOK, status)
	info := decode(t, body)
	assert.Equal(t, metabolictest.BiomassID, info["biomass_reaction"])
	assert.NotEmpty(t, info["medium"])

	status, body = s.do(t, http.MethodGet, "/models/core", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, metabolictest.ModelID, decode(t, body)["id"])

	status, body = s.do(t, http.MethodPost, "/models/core",
		`[{"operation": "knockout", "type": "reaction", "id": "PFK"}]`, "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"PFK"`)

	status, body = s.do(t, http.MethodPost, "/models/core/simulate?diff=true",
		`{"message": {"genotype": ["-pta"], "to-return": ["growth-rate", "removed-reactions", "model"], "request-id": "r1"}}`, "")
	require.Equal(t, http.StatusOK, status, string(body))
	out := decode(t, body)
	assert.InDelta(t, 20.0/3, out["growth-rate"], 1e-6)
	assert.Equal(t, []interface{}{"PTAr"}, out["removed-reactions"])
	assert.Equal(t, "r1", out["request-id"])
	assert.Contains(t, out, "model")

	status, _ = s.do(t, http.MethodPost, "/models/core/simulate", `{"message": {"to-return": ["maps"]}}`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/models/core/simulate", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebSocketSession(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.app.Listener(ln) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })

	conn, resp, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/models/core", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))

	send := func(frame string) map[string]interface{} {
		require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(frame)))
		_, reply, err := conn.ReadMessage()
		require.NoError(t, err)
		return decode(t, reply)
	}

	out := send(`{"genotype": ["-pta"], "to-return": ["removed-reactions"], "request-id": "a"}`)
	assert.Equal(t, []interface{}{"PTAr"}, out["removed-reactions"])
	assert.Equal(t, "a", out["request-id"])

	out = send(`{"to-return": ["removed-reactions"], "request-id": "b"}`)
	assert.Equal(t, []interface{}{}, out["removed-reactions"], "each message starts from the wild type")

	out = send(`not json`)
	assert.Contains(t, out["error"], "Malformed message")

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("close")))
	_, _, err = conn.ReadMessage()
	assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure), "%v", err)
}

func TestWebSocketRequiresAccess(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.app.Listener(ln) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })

	_, resp, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/models/locked", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "message")
}
