package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-api/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-api/internal/auth"
	"github.com/spec-kit/helpdesk-api/internal/config"
	"github.com/spec-kit/helpdesk-api/internal/events"
	"github.com/spec-kit/helpdesk-api/internal/observability"
	"github.com/spec-kit/helpdesk-api/internal/repository/memory"
	"github.com/spec-kit/helpdesk-api/internal/service"
)

type testServer struct {
	app *fiber.App
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	cfg := config.Config{
		App:  config.AppConfig{Name: "helpdesk-test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost},
		HTTP: config.HTTPConfig{AllowedOrigins: "http://localhost:5173", RateLimitMax: rateLimit, RateLimitWindowSec: 60},
	}

	store := memory.NewStore()
	repos := store.Repositories()
	metrics := observability.NewMetrics()
	authService := service.NewAuthService(cfg.Auth, repos.Users)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Repos:      repos,
		Transactor: store,
		Dispatcher: events.NewInMemoryDispatcher(),
	})

	app := NewApp(cfg, zap.NewNop(), RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, "test", nil),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Metrics:        metrics,
	})
	return &testServer{app: app}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (s *testServer) signupAndLogin(t *testing.T, name, role string) (string, string) {
	t.Helper()
	email := name + "@example.com"
	status, _ := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret1", "role": role,
	})
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, role, user["role"])
	return body["token"].(string), user["id"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, 1000)
	userToken, userID := s.signupAndLogin(t, "alice", "user")
	agentToken, agentID := s.signupAndLogin(t, "agent", "agent")
	adminToken, _ := s.signupAndLogin(t, "admin", "admin")
	otherToken, _ := s.signupAndLogin(t, "mallory", "user")

	status, body := s.do(t, http.MethodPost, "/api/v1/tickets", userToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/v1/tickets", userToken, map[string]string{
		"title": "Printer on fire", "priority": "High",
	})
	require.Equal(t, http.StatusCreated, status)
	ticket := body["ticket"].(map[string]any)
	ticketID := ticket["id"].(string)
	assert.Equal(t, "Open", ticket["status"])
	assert.Equal(t, agentID, ticket["assignedTo"].(map[string]any)["id"])
	assert.Equal(t, userID, ticket["createdBy"].(map[string]any)["id"])

	status, body = s.do(t, http.MethodGet, "/api/v1/tickets?q=FIRE&limit=5", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 1, meta["total"])
	assert.EqualValues(t, 5, meta["limit"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticketID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticketID, agentToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ticketID, body["id"])
	status, _ = s.do(t, http.MethodGet, "/api/v1/tickets/00000000-0000-0000-0000-000000000000", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticketID+"/comment", agentToken, map[string]string{"message": "on it"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "on it", body["ticket"].(map[string]any)["latestComment"])

	status, body = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticketID+"/comments", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = s.do(t, http.MethodPatch, "/api/v1/tickets/"+ticketID, userToken, map[string]any{
		"updates": map[string]string{"priority": "Urgent"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPatch, "/api/v1/tickets/"+ticketID, userToken, map[string]any{
		"updates": map[string]string{"priority": "Urgent"}, "version": 0,
	})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["ticket"].(map[string]any)["version"])

	status, body = s.do(t, http.MethodPatch, "/api/v1/tickets/"+ticketID, agentToken, map[string]any{
		"updates": map[string]string{"status": "In Progress"}, "version": 0,
	})
	assert.Equal(t, http.StatusConflict, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.EqualValues(t, 1, details["serverVersion"])
	assert.EqualValues(t, 1, body["serverVersion"])

	status, body = s.do(t, http.MethodPut, "/api/v1/tickets/"+ticketID+"/status", agentToken, map[string]string{"status": "Resolved"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Resolved", body["ticket"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/v1/tickets/internal/check-sla", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["breached"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/agents", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = s.do(t, http.MethodGet, "/api/v1/agents", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	agents := body["data"].([]any)
	require.Len(t, agents, 1)
	assert.EqualValues(t, 0, agents[0].(map[string]any)["ticketCount"])
}

func TestAuthErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t, 1000)
	s.signupAndLogin(t, "bob", "user")

	status, body := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "bob", "email": "bob@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "bob@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, http.MethodGet, "/api/v1/tickets", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateTicketWithoutAgentsOverHTTP(t *testing.T) {
	s := newTestServer(t, 1000)
	token, _ := s.signupAndLogin(t, "carol", "user")

	status, body := s.do(t, http.MethodPost, "/api/v1/tickets", token, map[string]string{"title": "Help"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_AGENT_AVAILABLE", errorCode(body))
}

func TestProbesAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, 1000)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "helpdesk_http_requests_total")
}

func TestRateLimitOverHTTP(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodGet, "/api/v1/tickets", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := s.do(t, http.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", errorCode(body))

	status, _ = s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
}
