package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/deppfellow/autoprintx/internal/validation"
	"github.com/labstack/echo/v4"
)

// FileField is the multipart field carrying customer documents.
const FileField = "FileUpload"

type OrderHandler struct {
	Handler
	orders *service.OrderService
}

func NewOrderHandler(s *server.Server, orders *service.OrderService) *OrderHandler {
	return &OrderHandler{
		Handler: NewHandler(s),
		orders:  orders,
	}
}

type ShopRequest struct {
	UniqueURL string `param:"unique_url" validate:"required"`
}

func (r *ShopRequest) Validate() error { return validation.Struct(r) }

type FilterOrdersRequest struct {
	Page    string `query:"page"`
	PerPage string `query:"per_page"`
	Search  string `query:"search"`
	From    string `query:"from"`
	To      string `query:"to"`
	Status  string `query:"status"`
}

// queryInt parses a paging parameter; junk reads as zero and the service
// falls back to its defaults.
func queryInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func (r *FilterOrdersRequest) Validate() error { return nil }

// OrderRef accepts the order id as a JSON string or number.
type OrderRef string

func (r *OrderRef) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*r = ""
	case string:
		*r = OrderRef(strings.TrimSpace(t))
	case float64:
		*r = OrderRef(fmt.Sprintf("%.0f", t))
	default:
		return fmt.Errorf("order_id must be a string or number")
	}
	return nil
}

type UpdatePrintStatusRequest struct {
	OrderID OrderRef `json:"order_id"`
}

func (r *UpdatePrintStatusRequest) Validate() error {
	if r.OrderID == "" {
		return errs.NewBadRequestError("order_id is required", true, nil,
			[]errs.FieldError{{Field: "order_id", Error: "This field is required."}}, nil)
	}
	return nil
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *OrderHandler) ShopInfo(c echo.Context, req *ShopRequest) (*service.ShopInfoResponse, error) {
	return h.orders.ShopInfo(c.Request().Context(), req.UniqueURL)
}

// Upload accepts a customer's multipart submission. Every non-file field is
// passed through with its first value.
func (h *OrderHandler) Upload(c echo.Context, req *ShopRequest) (*service.UploadResult, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errs.NewBadRequestError("Expected a multipart/form-data submission.", true, nil, nil, nil)
	}

	return h.orders.Upload(c.Request().Context(), req.UniqueURL, uploadForm(form))
}

func uploadForm(form *multipart.Form) service.UploadForm {
	fields := make(map[string]string, len(form.Value))
	for name, values := range form.Value {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}

	var files []service.UploadFile
	for _, fh := range form.File[FileField] {
		files = append(files, uploadFile(fh))
	}

	return service.UploadForm{Fields: fields, Files: files}
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (h *OrderHandler) Filter(c echo.Context, req *FilterOrdersRequest) (*service.FilterResult, error) {
	return h.orders.Filter(c.Request().Context(), middleware.GetUserID(c), service.FilterParams{
		Page:    queryInt(req.Page),
		PerPage: queryInt(req.PerPage),
		Search:  req.Search,
		Status:  req.Status,
		From:    req.From,
		To:      req.To,
	})
}

func (h *OrderHandler) UpdatePrintStatus(c echo.Context, req *UpdatePrintStatusRequest) (*MessageResponse, error) {
	order, err := h.orders.MarkComplete(c.Request().Context(), middleware.GetUserID(c), string(req.OrderID))
	if err != nil {
		return nil, err
	}

	middleware.GetLogger(c).Info().
		Str("order_id", string(req.OrderID)).
		Str("print_status", model.PrintStatusComplete).
		Msg("print status updated")

	return &MessageResponse{Message: fmt.Sprintf("Order %s marked as %s", req.OrderID, order.PrintStatus)}, nil
}
