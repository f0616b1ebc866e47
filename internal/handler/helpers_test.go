package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/database"
	"github.com/noah-isme/action-ledger/internal/handler"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/repository"
	"github.com/noah-isme/action-ledger/internal/service"
)

const testSecret = "handler-test-secret"

var (
	aliceLicense = "license:" + strings.Repeat("a1", 20)
	bobLicense   = "license:" + strings.Repeat("b2", 20)
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

type apiFixture struct {
	app    *fiber.App
	ledger service.ActionLedgerService
}

func setupAPI(t *testing.T, banLimit int) *apiFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	actions := repository.NewActionRepository(db)
	players := repository.NewPlayerRepository(db)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	ledger := service.NewActionLedgerService(actions, players, nil, validate, activity, service.LedgerConfig{RequiredHWIDMatches: 1}, logger)
	revocation := service.NewRevocationService(actions, players, service.NewLogEffectDispatcher(logger), activity, logger)
	search := service.NewActionSearchService(actions, service.SearchConfig{DefaultLimit: 10, MaxLimit: 50}, logger)
	stats := service.NewActionStatsService(actions, players, nil, time.Minute, logger)
	limiter := service.NewMemoryBanRateLimiter(service.BanRateLimiterConfig{Max: banLimit, Window: time.Hour}, logger)

	app := fiber.New()
	app.Use(middleware.CorrelationID(logger))
	api := app.Group("/api/v1", middleware.JWTProtected(testSecret))

	actionHandler := handler.NewActionHandler(ledger, revocation, limiter, logger)
	actionHandler.Register(api.Group("/actions"))
	actionHandler.RegisterPcChecks(api.Group("/pc-checks"))

	historyHandler := handler.NewHistoryHandler(search, ledger, validate, logger)
	historyHandler.Register(api.Group("/history"))
	historyHandler.RegisterWagerBlacklist(api.Group("/wager-blacklist"))

	handler.NewStatsHandler(stats, logger).Register(api.Group("/stats"))
	handler.NewAdminLogHandler(activity, logger).Register(api.Group("/admin-logs"))

	return &apiFixture{app: app, ledger: ledger}
}

func tokenFor(t *testing.T, name string, permissions ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"name":        name,
		"permissions": permissions,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func masterToken(t *testing.T, name string) string {
	t.Helper()
	claims := jwt.MapClaims{"name": name, "is_master": true, "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

// create posts an action and returns its id.
func (f *apiFixture) create(t *testing.T, kind, token string, body interface{}) string {
	t.Helper()
	status, env := f.do(t, http.MethodPost, "/api/v1/actions/"+kind, token, body)
	require.Equal(t, http.StatusCreated, status, env.Message)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func hoursFromNow(h int) int64 {
	return time.Now().Add(time.Duration(h) * time.Hour).Unix()
}
