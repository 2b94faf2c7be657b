package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-stock/internal/application/audit"
	apphttp "github.com/jhoicas/Inventario-stock/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/Inventario-stock/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testTenantID  = "00000000-0000-0000-0000-000000000002"
	testIssuer    = "inventario-stock-test"
	testExpMin    = 60
)

// bearer genera un JWT válido para el usuario y tenant dados.
func bearer(t *testing.T, userID, tenantID string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, userID, tenantID, testIssuer, testExpMin)
	require.NoError(t, err, "debe generarse un token JWT válido")
	return "Bearer " + tok
}

func buildMeApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", apphttp.RequestMeta(), apphttp.AuthMiddleware(testJWTSecret), func(c *fiber.Ctx) error {
		meta := audit.MetaFrom(c.UserContext())
		return c.JSON(fiber.Map{
			"user_id":        apphttp.GetUserID(c),
			"tenant_id":      apphttp.GetTenantID(c),
			"correlation_id": meta.CorrelationID,
			"user_agent":     meta.UserAgent,
		})
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, path, authHeader string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_ExtraeClaimsYMeta(t *testing.T) {
	app := buildMeApp()
	resp := doGet(t, app, "/me", bearer(t, testUserID, testTenantID), map[string]string{
		apphttp.HeaderCorrelationID: "corr-123",
		"User-Agent":                "stock-tests/1.0",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "corr-123", resp.Header.Get(apphttp.HeaderCorrelationID))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testUserID, body["user_id"])
	assert.Equal(t, testTenantID, body["tenant_id"])
	assert.Equal(t, "corr-123", body["correlation_id"])
	assert.Equal(t, "stock-tests/1.0", body["user_agent"])
}

func TestRequestMeta_GeneraCorrelationID(t *testing.T) {
	app := buildMeApp()
	resp := doGet(t, app, "/me", bearer(t, testUserID, testTenantID), nil)
	defer resp.Body.Close()

	generated := resp.Header.Get(apphttp.HeaderCorrelationID)
	assert.NotEmpty(t, generated, "sin cabecera debe generarse un correlation id")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, generated, body["correlation_id"])
}

func TestAuthMiddleware_Rechazos(t *testing.T) {
	app := buildMeApp()
	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"sin header", "", "MISSING_TOKEN"},
		{"sin Bearer", "Token abc", "INVALID_TOKEN"},
		{"solo Bearer", "Bearer", "INVALID_TOKEN"},
		{"Bearer con espacios finales", "Bearer   ", "INVALID_TOKEN"},
		{"token malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, app, "/me", tt.header, nil)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tt.code)
		})
	}
}

func TestAuthMiddleware_TokenDeOtroSecreto(t *testing.T) {
	app := buildMeApp()
	tok, err := pkgjwt.Generate("otro-secreto", testUserID, testTenantID, testIssuer, testExpMin)
	require.NoError(t, err)

	resp := doGet(t, app, "/me", "Bearer "+tok, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
