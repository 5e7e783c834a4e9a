package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *server.Server {
	logger := zerolog.Nop()
	return &server.Server{
		Config: &config.Config{
			Primary: config.Primary{Env: "test"},
			Auth:    config.AuthConfig{AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour},
		},
		Logger: &logger,
	}
}

type echoRequest struct {
	Word string `json:"word" validate:"required"`
}

func (r *echoRequest) Validate() error { return validation.Struct(r) }

func TestHandleBindsFreshRequestEachCall(t *testing.T) {
	h := NewHandler(newTestServer())
	e := echo.New()

	var seen []*echoRequest
	e.POST("/echo", Handle(h, func(c echo.Context, req *echoRequest) (*echoRequest, error) {
		seen = append(seen, req)
		return req, nil
	}, http.StatusAccepted, &echoRequest{}))

	for _, body := range []string{`{"word":"one"}`, `{"word":"two"}`} {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.Equal(t, "one", seen[0].Word)
	assert.Equal(t, "two", seen[1].Word)
}

func TestHandleSkipsCommittedResponse(t *testing.T) {
	h := NewHandler(newTestServer())
	e := echo.New()
	e.GET("/cached", Handle(h, func(c echo.Context, _ *EmptyRequest) (*RecentOrdersResponse, error) {
		return nil, c.NoContent(http.StatusNotModified)
	}, http.StatusOK, &EmptyRequest{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cached", nil))
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestETagMatches(t *testing.T) {
	tag := "2026-03-18T09:30:00Z"

	assert.True(t, etagMatches(`"2026-03-18T09:30:00Z"`, tag))
	assert.True(t, etagMatches(`W/"2026-03-18T09:30:00Z"`, tag))
	assert.True(t, etagMatches(`"stale", "2026-03-18T09:30:00Z"`, tag))
	assert.True(t, etagMatches(`*`, tag))
	assert.False(t, etagMatches(`"2026-03-18T09:29:59Z"`, tag))
	assert.False(t, etagMatches("", tag))
	assert.False(t, etagMatches(`"x"`, ""))
}

func TestOrderRefAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]OrderRef{
		`{"order_id":" ORD-7 "}`: "ORD-7",
		`{"order_id":42}`:        "42",
		`{"order_id":null}`:      "",
		`{}`:                     "",
	}
	for body, want := range cases {
		var req UpdatePrintStatusRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.Equal(t, want, req.OrderID, body)
	}

	var req UpdatePrintStatusRequest
	assert.Error(t, json.Unmarshal([]byte(`{"order_id":[1]}`), &req))
}

func TestUpdatePrintStatusRequiresOrderID(t *testing.T) {
	err := (&UpdatePrintStatusRequest{}).Validate()

	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	assert.Equal(t, "order_id is required", httpErr.Message)
}

func TestSettingsData(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		req := &UpdateSettingsRequest{Section: "general", Data: json.RawMessage(`{"shopName":"Corner"}`)}
		require.NoError(t, req.Validate())
		data, err := req.decodeData()
		require.NoError(t, err)
		assert.Equal(t, "Corner", data["shopName"])
	})

	t.Run("encoded string", func(t *testing.T) {
		req := &UpdateSettingsRequest{Section: "general", Data: json.RawMessage(`"{\"phone\":9876543210}"`)}
		data, err := req.decodeData()
		require.NoError(t, err)
		assert.Equal(t, float64(9876543210), data["phone"])
	})

	t.Run("form field", func(t *testing.T) {
		req := &UpdateSettingsRequest{Section: "profile", FormData: `{"firstName":"Asha"}`}
		require.NoError(t, req.Validate())
		data, err := req.decodeData()
		require.NoError(t, err)
		assert.Equal(t, "Asha", data["firstName"])
	})

	t.Run("missing", func(t *testing.T) {
		for _, req := range []*UpdateSettingsRequest{
			{Data: json.RawMessage(`{}`)},
			{Section: "general"},
			{Section: "general", Data: json.RawMessage(`null`)},
		} {
			err := req.Validate()
			require.Error(t, err)
			assert.Equal(t, "Both 'section' and 'data' are required.", err.Error())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		req := &UpdateSettingsRequest{Section: "general", Data: json.RawMessage(`"not json"`)}
		_, err := req.decodeData()
		require.Error(t, err)
		assert.Equal(t, "Invalid JSON format in 'data' field.", err.Error())
	})
}

func TestSessionCookie(t *testing.T) {
	s := newTestServer()
	h := NewAuthHandler(s, nil)

	live := h.sessionCookie("access_token", "abc", time.Now().Add(time.Hour))
	assert.True(t, live.HttpOnly)
	assert.True(t, live.Secure)
	assert.Equal(t, http.SameSiteNoneMode, live.SameSite)
	assert.Equal(t, "/", live.Path)
	assert.InDelta(t, 3600, live.MaxAge, 2)

	expired := h.sessionCookie("access_token", "", time.Time{})
	assert.Equal(t, -1, expired.MaxAge)

	s.Config.Auth.CookieInsecure = true
	dev := h.sessionCookie("access_token", "abc", time.Now().Add(time.Hour))
	assert.False(t, dev.Secure)
	assert.Equal(t, http.SameSiteLaxMode, dev.SameSite)
}
