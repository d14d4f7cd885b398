package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/calibration"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testHandlers(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	dir := t.TempDir()

	calib, err := calibration.New(filepath.Join(dir, "calib.json"))
	require.NoError(t, err)
	subs, err := filestore.OpenSubscriptionStore(filepath.Join(dir, "subs.json"))
	require.NoError(t, err)
	tokens, err := filestore.OpenDeviceTokenStore(filepath.Join(dir, "tokens.json"))
	require.NoError(t, err)

	loc := &geo.Location{Name: "test", Timezone: "UTC"}
	require.NoError(t, loc.Resolve())

	h := &Handlers{
		Calib:    calib,
		Subs:     subs,
		Tokens:   tokens,
		Location: loc,
		Log:      zerolog.Nop(),
	}
	return h, NewRouter(h)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetVersion_ReturnsOK(t *testing.T) {
	_, r := testHandlers(t)
	rec := doJSON(t, r, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalibration_RoundTrip(t *testing.T) {
	_, r := testHandlers(t)

	rec := doJSON(t, r, http.MethodPost, "/api/calibration", setCalibrationRequest{Offset: 45})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/calibration", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(45), resp["offset"])
}

func TestCalibration_RejectsOutOfBoundsAndLeavesStateUnchanged(t *testing.T) {
	h, r := testHandlers(t)
	require.NoError(t, h.Calib.Set(10))

	rec := doJSON(t, r, http.MethodPost, "/api/calibration", setCalibrationRequest{Offset: 400})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 10, h.Calib.OffsetDeg())
}

func TestNotificationsSubscribeUnsubscribeAndStats(t *testing.T) {
	_, r := testHandlers(t)

	rec := doJSON(t, r, http.MethodPost, "/api/notifications/subscribe", subscribeRequest{
		Endpoint: "https://push.example/abc",
		Keys:     filestore.WebPushKeys{P256DH: "p", Auth: "a"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/notifications/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["web_subscriptions"])

	rec = doJSON(t, r, http.MethodPost, "/api/notifications/unsubscribe", unsubscribeRequest{
		Endpoint: "https://push.example/abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/notifications/stats", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(0), stats["web_subscriptions"])
}

func TestNotificationsSubscribe_RejectsMissingEndpoint(t *testing.T) {
	_, r := testHandlers(t)
	rec := doJSON(t, r, http.MethodPost, "/api/notifications/subscribe", subscribeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPNSRegisterAndUnregister(t *testing.T) {
	_, r := testHandlers(t)

	rec := doJSON(t, r, http.MethodPost, "/api/notifications/apns/register", apnsRegisterRequest{Token: "tok-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/notifications/apns/unregister", apnsUnregisterRequest{Token: "tok-1"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteError_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.New(apperr.KindInvalidInput, "bad input", nil), http.StatusBadRequest},
		{apperr.New(apperr.KindStorageTransient, "db hiccup", nil), http.StatusInternalServerError},
		{apperr.New(apperr.KindConfigMissing, "no creds", nil), http.StatusServiceUnavailable},
		{apperr.New(apperr.KindUpstreamPermanent, "gone", nil), http.StatusBadGateway},
		{apperr.ErrNoData, http.StatusNotFound},
	}

	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		writeError(c, tc.err)
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestAdminRequired_DisabledWhenTokenUnset(t *testing.T) {
	_, r := testHandlers(t)
	rec := doJSON(t, r, http.MethodPost, "/api/notifications/test", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminRequired_RejectsWrongToken(t *testing.T) {
	h, _ := testHandlers(t)
	h.AdminToken = "secret"
	r := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/test", bytes.NewReader(nil))
	req.Header.Set("X-Admin-Token", "wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntParam_FallsBackToDefaultOnMissingOrInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x?hours=notanumber", nil)
	assert.Equal(t, 24, intParam(c, "hours", 24))

	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, 24, intParam(c, "hours", 24))

	c.Request = httptest.NewRequest(http.MethodGet, "/x?hours=48", nil)
	assert.Equal(t, 48, intParam(c, "hours", 24))
}
