package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/http/fiber/middleware"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	NewHandler(f.svc).RegisterRoutes(app, middleware.Identity())
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHandler_SessionFlow(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	resp, _ := doJSON(t, app, http.MethodPost, "/sessions/start", "", map[string]string{
		"stationId": "station-1", "chargerId": "charger-1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/start", "user-1", map[string]string{
		"stationId": "station-1", "chargerId": "charger-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.Equal(t, string(domain.SessionStatusCharging), body["status"])

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/start", "user-2", map[string]string{
		"stationId": "station-1", "chargerId": "charger-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(domain.ConflictChargerBusy), body["kind"])

	f.clock.Advance(10 * time.Minute)
	resp, body = doJSON(t, app, http.MethodGet, "/sessions/"+id+"/status", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 6.0, body["energy_charged"], 1e-9)

	resp, _ = doJSON(t, app, http.MethodGet, "/sessions/"+id, "user-2", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/"+id+"/pay", "user-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(domain.ConflictNotCompleted), body["kind"])

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/"+id+"/stop", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(domain.SessionStatusCompleted), body["status"])

	resp, body = doJSON(t, app, http.MethodPut, "/sessions/"+id+"/paid?paymentId=pay-9", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_paid"])

	resp, body = doJSON(t, app, http.MethodGet, "/sessions/me", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_MarkPaidRequiresPaymentID(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	s := f.start(t, "user-1", "charger-1")

	resp, body := doJSON(t, app, http.MethodPut, "/sessions/"+s.ID+"/paid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "paymentId", body["field"])
}

func TestHandler_UnknownSession(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	resp, _ := doJSON(t, app, http.MethodPost, "/sessions/nope/stop", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
