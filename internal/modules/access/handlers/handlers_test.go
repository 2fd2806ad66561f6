package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/treasury/internal/domain"
	"github.com/aristath/treasury/internal/events"
	"github.com/aristath/treasury/internal/modules/access"
	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/aristath/treasury/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	rt := testingpkg.NewTestRuntime(t)
	log := zerolog.Nop()
	manager := events.NewManager(events.NewRepository(rt.DB(), log), events.NewBus(), log)
	registry := access.NewRegistry(access.NewRepository(rt.DB(), log), rt, manager, log)
	require.NoError(t, registry.Bootstrap(context.Background(), []domain.Address{testingpkg.Governor}, nil))

	router := chi.NewRouter()
	NewHandler(registry, log).RegisterRoutes(router)
	return router
}

func TestHandleGrantGovernor(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/access/governors", strings.NewReader(`{"address":"0xkeeper"}`))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Governor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/access/roles", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var roles access.Roles
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roles))
	assert.Contains(t, roles.Governors, testingpkg.Keeper)
}

func TestHandleGrantGovernor_Forbidden(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/access/governors", strings.NewReader(`{"address":"0xkeeper"}`))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Stranger))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/access/governors", strings.NewReader(`{"address":"0xkeeper"}`))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "missing caller header")
}

func TestHandleRevokeGovernor_LastGovernorConflict(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/access/governors/0xgovernor", nil)
	req.Header.Set(utils.CallerHeader, string(testingpkg.Governor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleGrantGuardian_BadBody(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/access/guardians", strings.NewReader(`{"who":"x"}`))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Governor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
