package handler

import (
	"fmt"
	"net/http"
	"os"

	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
)

// OpenAPIDocument is the page served at /docs. It loads static/openapi.json.
const OpenAPIDocument = "static/openapi.html"

type OpenAPIHandler struct {
	Handler
}

func NewOpenAPIHandler(s *server.Server) *OpenAPIHandler {
	return &OpenAPIHandler{
		Handler: NewHandler(s),
	}
}

func (h *OpenAPIHandler) ServeOpenAPIUI(c echo.Context) error {
	page, err := os.ReadFile(OpenAPIDocument)

	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")

	if err != nil {
		return fmt.Errorf("failed to read OpenAPI UI template: %w", err)
	}

	if err := c.HTML(http.StatusOK, string(page)); err != nil {
		return fmt.Errorf("failed to write HTML response: %w", err)
	}

	return nil
}
