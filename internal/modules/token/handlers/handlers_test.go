package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	testingpkg "github.com/aristath/treasury/internal/testing"
	"github.com/aristath/treasury/internal/testing/harness"
	"github.com/aristath/treasury/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, faucet bool) chi.Router {
	t.Helper()
	tr := harness.New(t)
	router := chi.NewRouter()
	NewHandler(tr.Book, tr.Roles, faucet, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGetBalance(t *testing.T) {
	router := setupRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens/balances/0xusdc/0xtreasury-pool", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1000000000000", resp.Balance)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens/balances/0xnothing/0xtreasury-pool", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetAssets(t *testing.T) {
	router := setupRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens/assets", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USDC")
}

func TestHandleFaucet(t *testing.T) {
	router := setupRouter(t, true)
	body := `{"asset":"0xdai","to":"0xrecipient","amount":"5"}`

	req := httptest.NewRequest(http.MethodPost, "/tokens/faucet", strings.NewReader(body))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Stranger))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/tokens/faucet", strings.NewReader(body))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Governor))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"balance":"5"`)
}

func TestHandleFaucet_DisabledOutsideDevMode(t *testing.T) {
	router := setupRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/tokens/faucet", strings.NewReader(`{}`))
	req.Header.Set(utils.CallerHeader, string(testingpkg.Governor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
