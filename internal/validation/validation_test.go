package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyRequest struct {
	EmailOrPhone string `json:"email_or_phone" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=4,numeric"`
}

func (r *verifyRequest) Validate() error { return Struct(r) }

type customRequest struct {
	Section string `json:"section"`
}

func (r *customRequest) Validate() error {
	if r.Section == "" {
		return CustomValidationErrors{{Field: "section", Message: "Both 'section' and 'data' are required."}}
	}
	return nil
}

func bind(t *testing.T, body string, payload Validatable) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return BindAndValidate(e.NewContext(req, httptest.NewRecorder()), payload)
}

func TestBindAndValidateAcceptsValidPayload(t *testing.T) {
	var req verifyRequest
	require.NoError(t, bind(t, `{"email_or_phone":"a@b.co","otp":"1234"}`, &req))
	assert.Equal(t, "1234", req.OTP)
}

func TestBindAndValidateReportsJSONFieldNames(t *testing.T) {
	var req verifyRequest
	err := bind(t, `{"otp":"12a"}`, &req)

	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	require.Len(t, httpErr.Errors, 2)
	assert.Equal(t, "email_or_phone", httpErr.Errors[0].Field)
	assert.Equal(t, "This field is required.", httpErr.Errors[0].Error)
	assert.Equal(t, "otp", httpErr.Errors[1].Field)
}

func TestBindAndValidateMalformedBody(t *testing.T) {
	var req verifyRequest
	err := bind(t, `{"otp":`, &req)

	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.NotEmpty(t, httpErr.Message)
	assert.Empty(t, httpErr.Errors)
}

func TestCustomValidationErrors(t *testing.T) {
	var req customRequest
	err := bind(t, `{}`, &req)

	httpErr, ok := err.(*errs.HTTPError)
	require.True(t, ok)
	require.Len(t, httpErr.Errors, 1)
	assert.Equal(t, "section", httpErr.Errors[0].Field)
}
