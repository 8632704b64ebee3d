package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/observability"
)

const testGatewaySecret = "kong-shared-secret"

func newGatewayApp(metrics *observability.Metrics) *fiber.App {
	gate := NewGatewayTrustGate(config.GatewayConfig{SharedSecret: testGatewaySecret}, nil, metrics)
	app := fiber.New()
	app.Use(gate.Handle)
	app.Get("/*", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func gatewayRequest(path, proxy, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if proxy != "" {
		req.Header.Set("X-Kong-Proxy", proxy)
	}
	if secret != "" {
		req.Header.Set("X-Kong-Auth", secret)
	}
	return req
}

func TestGatewayRejectsDirectAccess(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newGatewayApp(metrics)

	resp, err := app.Test(gatewayRequest("/api/customers/search", "", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"error":"Forbidden"`)

	var rejection GatewayRejection
	require.NoError(t, json.Unmarshal(body, &rejection))
	assert.Equal(t, "/api/customers/search", rejection.Path)
	assert.Equal(t, gatewayDeniedMessage, rejection.Message)
	assert.NotEmpty(t, rejection.Timestamp)

	assert.Equal(t, int64(1), metrics.Snapshot().GatewayRejections["/api/customers/search"])
}

func TestGatewayRejectsWrongSignals(t *testing.T) {
	app := newGatewayApp(nil)

	cases := map[string]*http.Request{
		"missing secret": gatewayRequest("/api/auth/login", "true", ""),
		"wrong secret":   gatewayRequest("/api/auth/login", "true", "nope"),
		"proxy false":    gatewayRequest("/api/auth/login", "false", testGatewaySecret),
		"proxy missing":  gatewayRequest("/api/auth/login", "", testGatewaySecret),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestGatewayAcceptsTrustedRequests(t *testing.T) {
	app := newGatewayApp(nil)

	for _, proxy := range []string{"true", "TRUE", "True"} {
		resp, err := app.Test(gatewayRequest("/api/auth/login", proxy, testGatewaySecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "proxy=%s", proxy)
	}
}

func TestGatewayAllowList(t *testing.T) {
	app := newGatewayApp(nil)

	for _, path := range []string{
		"/health/live",
		"/actuator/health",
		"/swagger-ui/index.html",
		"/v3/api-docs",
		"/static/app.js",
		"/favicon.ico",
	} {
		resp, err := app.Test(gatewayRequest(path, "", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := app.Test(gatewayRequest("/favicon.ico.bak", "", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGatewayWithoutConfiguredSecretRejectsEverything(t *testing.T) {
	gate := NewGatewayTrustGate(config.GatewayConfig{}, nil, nil)
	assert.False(t, gate.trusted("true", ""))
	assert.False(t, gate.trusted("true", "anything"))
}

func TestGatewayRejectionCountSurvivesLaterRequests(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newGatewayApp(metrics)

	resp, err := app.Test(gatewayRequest("/api/auth/me", "", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, path := range []string{"/health/metrics", "/static/zzzzzzzzzzzz.js", "/health/live"} {
		_, err := app.Test(gatewayRequest(path, "", ""))
		require.NoError(t, err)
	}

	rejections := metrics.Snapshot().GatewayRejections
	assert.Equal(t, map[string]int64{"/api/auth/me": 1}, rejections)
}
