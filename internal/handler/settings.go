package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/labstack/echo/v4"
)

// AvatarField is the multipart field carrying a new profile picture.
const AvatarField = "avatar"

type SettingsHandler struct {
	Handler
	settings *service.SettingsService
}

func NewSettingsHandler(s *server.Server, settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		Handler:  NewHandler(s),
		settings: settings,
	}
}

// UpdateSettingsRequest arrives as JSON or as a multipart form. In both
// cases data may be an object or a JSON-encoded string.
type UpdateSettingsRequest struct {
	Section  string          `json:"section" form:"section"`
	Data     json.RawMessage `json:"data"`
	FormData string          `json:"-" form:"data"`
}

func (r *UpdateSettingsRequest) rawData() []byte {
	if r.FormData != "" {
		return []byte(r.FormData)
	}
	raw := bytes.TrimSpace(r.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

func (r *UpdateSettingsRequest) Validate() error {
	r.Section = strings.TrimSpace(r.Section)
	if r.Section == "" || r.rawData() == nil {
		return errs.NewBadRequestError("Both 'section' and 'data' are required.", true, nil, nil, nil)
	}
	return nil
}

// decodeData accepts an object, or a string holding an object.
func (r *UpdateSettingsRequest) decodeData() (map[string]any, error) {
	raw := r.rawData()

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = []byte(encoded)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, errs.NewBadRequestError("Invalid JSON format in 'data' field.", true, nil, nil, nil)
	}
	return data, nil
}

func (h *SettingsHandler) Get(c echo.Context, _ *EmptyRequest) (*service.SettingsView, error) {
	return h.settings.Get(c.Request().Context(), middleware.GetUserID(c))
}

func (h *SettingsHandler) Update(c echo.Context, req *UpdateSettingsRequest) (*service.SettingsUpdateResult, error) {
	data, err := req.decodeData()
	if err != nil {
		return nil, err
	}

	update := service.SettingsUpdate{
		Section: req.Section,
		Data:    data,
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile(AvatarField)
		switch {
		case err == nil:
			avatar := uploadFile(fh)
			update.Avatar = &avatar
		case err != http.ErrMissingFile:
			return nil, errs.NewBadRequestError("Could not read the uploaded avatar.", true, nil, nil, nil)
		}
	}

	return h.settings.Update(c.Request().Context(), middleware.GetUserID(c), update)
}
