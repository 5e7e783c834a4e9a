package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/lib/hub"
	"github.com/deppfellow/autoprintx/internal/lib/storage"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Upload limits.
const (
	MaxUploadFiles = 5
	MaxFileSize    = 25 << 20
)

// AllowedExtensions lists the file types customers may upload.
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".jpg", ".jpeg", ".png"}

// Shop page defaults.
const (
	DefaultShopService = "Stationary & General Goods"
	PlaceholderImage   = "https://placehold.co/150x150/007bff/ffffff?text=Shop+Image"
)

// Pagination defaults for the order search.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// UploadFile is one file of a customer submission. Open is called only
// after every file has passed validation.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadForm is a parsed multipart submission. Fields holds the first value
// of every non-file form field.
type UploadForm struct {
	Fields map[string]string
	Files  []UploadFile
}

type ShopInfo struct {
	Name      string `json:"name"`
	Service   string `json:"service"`
	Location  string `json:"location"`
	Image     string `json:"image"`
	OwnerName string `json:"ownerName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Whatsapp  string `json:"whatsapp"`
}

type ShopInfoResponse struct {
	Message   string   `json:"message"`
	OwnerInfo ShopInfo `json:"owner_info"`
	Success   bool     `json:"success"`
}

type UploadResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Data          *model.Order   `json:"data"`
	OrderID       *string        `json:"order_id"`
	FilesUploaded int            `json:"files_uploaded"`
	FileNames     []string       `json:"file_names"`
	TotalSize     string         `json:"total_size"`
	TotalPages    int            `json:"total_pages"`
	FilePages     map[string]int `json:"file_pages"`
}

type FilterParams struct {
	Page    int
	PerPage int
	Search  string
	Status  string
	From    string
	To      string
}

type FilterResult struct {
	Orders      []model.Order `json:"orders"`
	TotalOrders int           `json:"total_orders"`
	TotalPages  int           `json:"total_pages"`
	CurrentPage int           `json:"current_page"`
	HasNext     bool          `json:"has_next"`
	HasPrevious bool          `json:"has_previous"`
}

type OrderService struct {
	server *server.Server
	owners OwnerStore
	orders OrderStore
	now    func() time.Time
}

func NewOrderService(s *server.Server, owners OwnerStore, orders OrderStore) *OrderService {
	return &OrderService{
		server: s,
		owners: owners,
		orders: orders,
		now:    time.Now,
	}
}

func orFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ShopInfo describes a shop for its customer upload page.
func (o *OrderService) ShopInfo(ctx context.Context, uniqueURL string) (*ShopInfoResponse, error) {
	owner, err := o.owners.GetByUniqueURL(ctx, uniqueURL)
	if isNotFound(err) {
		return nil, errs.NewNotFoundError("Shop does not exist. Please check the URL and try again.", true, nil)
	}
	if err != nil {
		return nil, err
	}

	return &ShopInfoResponse{
		Message: fmt.Sprintf("Upload form for shop: %s. Use POST to upload files.", owner.ShopName),
		OwnerInfo: ShopInfo{
			Name:      orFallback(owner.ShopName, "Unnamed Shop"),
			Service:   DefaultShopService,
			Location:  orFallback(owner.OwnerShopAddress, "Address Not Available"),
			Image:     orFallback(owner.ShopImage(), PlaceholderImage),
			OwnerName: "Owned by " + orFallback(owner.OwnerFullname, "Shop Owner"),
			Phone:     orFallback(owner.OwnerPhoneNumber, "N/A"),
			Email:     orFallback(owner.Email, "N/A"),
			Whatsapp:  orFallback(owner.OwnerPhoneNumber, "N/A"),
		},
		Success: true,
	}, nil
}

func fileExtension(name string) string {
	lower := strings.ToLower(name)
	if i := strings.LastIndex(lower, "."); i >= 0 {
		return lower[i:]
	}
	return "." + lower
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/(1<<20))
}

// ValidateUploadFiles applies the count, size and extension limits in the
// order customers see them reported.
func ValidateUploadFiles(files []UploadFile) error {
	if len(files) == 0 {
		return errs.NewBadRequestError("No files uploaded.", true, nil,
			[]errs.FieldError{{Field: "FileUpload", Error: "Please select at least one file to upload."}}, nil)
	}
	if len(files) > MaxUploadFiles {
		return errs.NewBadRequestError(
			fmt.Sprintf("Too many files. Maximum %d files allowed. You uploaded %d files.", MaxUploadFiles, len(files)),
			true, nil, nil, nil)
	}

	for _, f := range files {
		if f.Size > MaxFileSize {
			return errs.NewPayloadTooLargeError(
				fmt.Sprintf("File '%s' exceeds 25MB limit. File is %s.", f.Name, megabytes(f.Size)), true)
		}

		ext := fileExtension(f.Name)
		allowed := false
		for _, a := range AllowedExtensions {
			if ext == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return errs.NewBadRequestError(
				fmt.Sprintf("Invalid file type. File '%s' type '%s' not supported. Allowed: %s",
					f.Name, ext, strings.Join(AllowedExtensions, ", ")),
				true, nil, nil, nil)
		}
	}
	return nil
}

var errPageCount = errors.New("page count out of range")

// ParseFilePages decodes the FilePagesCount field. Counts may be JSON
// numbers or numeric strings; anything unparseable yields an empty map. A
// count outside [0, model.MaxPages] is an error.
func ParseFilePages(raw string) (map[string]int, int, error) {
	pages := map[string]int{}
	if strings.TrimSpace(raw) == "" {
		return pages, 0, nil
	}

	var decoded map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return pages, 0, nil
	}

	total := 0
	for name, n := range decoded {
		f, err := n.Float64()
		if err != nil {
			return map[string]int{}, 0, nil
		}
		if f < 0 || f > model.MaxPages {
			return nil, 0, errPageCount
		}
		pages[name] = int(f)
		total += int(f)
	}
	return pages, total, nil
}

func parseBool(s string) bool {
	switch s {
	case "1", "true", "True":
		return true
	}
	return false
}

// buildNewOrder maps the form fields onto an insert. Unknown fields are
// ignored.
func buildNewOrder(owner *model.Owner, fields map[string]string) (model.NewOrder, map[string]int, int, error) {
	var fieldErrs []errs.FieldError

	filePages, totalPages, err := ParseFilePages(fields["FilePagesCount"])
	if err != nil || totalPages > model.MaxPages {
		fieldErrs = append(fieldErrs, errs.FieldError{
			Field: "FilePagesCount",
			Error: fmt.Sprintf("page counts must total between 0 and %d", model.MaxPages),
		})
	}

	copies := 1
	if v := strings.TrimSpace(fields["NumberOfCopies"]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > model.MaxCopies {
			fieldErrs = append(fieldErrs, errs.FieldError{
				Field: "NumberOfCopies",
				Error: fmt.Sprintf("must be a whole number between 1 and %d", model.MaxCopies),
			})
		} else {
			copies = n
		}
	}

	if v := strings.TrimSpace(fields["NoOfPages"]); v != "" {
		if provided, err := strconv.Atoi(v); err == nil {
			if provided < 0 || provided > model.MaxPages {
				fieldErrs = append(fieldErrs, errs.FieldError{
					Field: "NoOfPages",
					Error: fmt.Sprintf("must be between 0 and %d", model.MaxPages),
				})
			} else {
				totalPages = max(provided, totalPages)
			}
		}
	}

	amount := decimal.Zero
	if v := strings.TrimSpace(fields["PaymentAmount"]); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			fieldErrs = append(fieldErrs, errs.FieldError{Field: "PaymentAmount", Error: "must be a valid amount"})
		} else {
			amount = d
		}
	}

	if len(fieldErrs) > 0 {
		return model.NewOrder{}, nil, 0, errs.NewBadRequestError("Invalid order data.", true, nil, fieldErrs, nil)
	}

	return model.NewOrder{
		OwnerID:        owner.ID,
		UniqueURL:      owner.UniqueURL,
		OrderID:        fields["OrderId"],
		FilePages:      filePages,
		PaperSize:      fields["PaperSize"],
		PaperType:      fields["PaperType"],
		PrintColor:     fields["PrintColor"],
		PrintSide:      fields["PrintSide"],
		Binding:        fields["Binding"],
		NumberOfCopies: copies,
		NoOfPages:      totalPages,
		PaymentStatus:  parseBool(fields["PaymentStatus"]),
		PaymentAmount:  amount,
		PaymentMethod:  fields["PaymentMethod"],
		TransactionID:  fields["Transaction_id"],
		CustomerName:   fields["CustomerName"],
	}, filePages, totalPages, nil
}

func readUpload(f UploadFile) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, MaxFileSize+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Upload validates a customer submission, stores its files and records the
// order. Stored files are removed again when the order cannot be saved.
func (o *OrderService) Upload(ctx context.Context, uniqueURL string, form UploadForm) (*UploadResult, error) {
	logger := o.server.Logger.With().Str("unique_url", uniqueURL).Logger()

	owner, err := o.owners.GetByUniqueURL(ctx, uniqueURL)
	if isNotFound(err) {
		return nil, errs.NewNotFoundError("Invalid shop URL. The shop does not exist.", true, nil)
	}
	if err != nil {
		return nil, err
	}

	if err := ValidateUploadFiles(form.Files); err != nil {
		logger.Warn().Err(err).Int("files", len(form.Files)).Msg("rejected upload")
		return nil, err
	}

	params, filePages, totalPages, err := buildNewOrder(owner, form.Fields)
	if err != nil {
		return nil, err
	}

	var (
		stored    []*storage.Object
		fileNames []string
		totalSize int64
	)
	params.FileURLs = make(map[string]string, len(form.Files))
	params.FileIDs = make(map[string]string, len(form.Files))

	cleanup := func() {
		for _, obj := range stored {
			if err := o.server.Storage.Delete(context.WithoutCancel(ctx), obj.FileID); err != nil {
				logger.Warn().Err(err).Str("file_id", obj.FileID).Msg("failed to remove orphaned upload")
			}
		}
	}

	for i, f := range form.Files {
		data, err := readUpload(f)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to read %q: %w", f.Name, err)
		}

		obj, err := o.server.Storage.Upload(ctx, data, f.Name, f.ContentType)
		if err != nil {
			cleanup()
			logger.Error().Err(err).Str("file", f.Name).Msg("storage upload failed")
			return nil, fmt.Errorf("failed to upload %q: %w", f.Name, err)
		}

		stored = append(stored, obj)
		if _, seen := params.FileURLs[f.Name]; !seen {
			fileNames = append(fileNames, f.Name)
		}
		params.FileURLs[f.Name] = obj.URL
		params.FileIDs[f.Name] = obj.FileID
		totalSize += f.Size

		logger.Debug().
			Str("file", f.Name).
			Str("file_id", obj.FileID).
			Msgf("stored file %d/%d", i+1, len(form.Files))
	}

	order, err := o.orders.Create(ctx, params)
	if err != nil {
		cleanup()
		return nil, err
	}

	o.afterOrderChange(ctx, order, hub.EventOrderCreated)

	logger.Info().
		Str("order_id", order.ID.String()).
		Int("files", len(form.Files)).
		Msg("order submitted")

	var clientOrderID *string
	if id, ok := form.Fields["OrderId"]; ok {
		clientOrderID = &id
	}

	return &UploadResult{
		Success:       true,
		Message:       fmt.Sprintf("Order submitted successfully with %d file(s)!", len(form.Files)),
		Data:          order,
		OrderID:       clientOrderID,
		FilesUploaded: len(form.Files),
		FileNames:     fileNames,
		TotalSize:     megabytes(totalSize),
		TotalPages:    totalPages,
		FilePages:     filePages,
	}, nil
}

// afterOrderChange drops the owner's cached dashboard and notifies their
// open dashboards. Neither failure affects the request.
func (o *OrderService) afterOrderChange(ctx context.Context, order *model.Order, eventType string) {
	invalidateOwnerCache(ctx, o.server, order.OwnerID, order.UniqueURL, o.now())

	err := o.server.Hub.Publish(ctx, hub.Event{
		Type:    eventType,
		OwnerID: order.OwnerID,
		Data:    order,
	})
	if err != nil {
		o.server.Logger.Warn().Err(err).Str("type", eventType).Msg("failed to publish order event")
	}
}

func invalidateOwnerCache(ctx context.Context, s *server.Server, ownerID uuid.UUID, uniqueURL string, now time.Time) {
	today := now.In(s.Config.Location())
	if err := cache.InvalidateOwner(ctx, s.Cache, ownerID, uniqueURL, today); err != nil {
		s.Logger.Warn().Err(err).Str("owner_id", ownerID.String()).Msg("failed to invalidate dashboard cache")
	}
}

// MarkComplete sets one of the owner's orders to Complete.
func (o *OrderService) MarkComplete(ctx context.Context, ownerID uuid.UUID, ref string) (*model.Order, error) {
	order, err := o.orders.MarkComplete(ctx, ownerID, ref)
	if isNotFound(err) {
		return nil, errs.NewNotFoundError("Order not found", true, nil)
	}
	if err != nil {
		return nil, err
	}

	o.afterOrderChange(ctx, order, hub.EventOrderUpdated)
	return order, nil
}

func parseDay(value string, loc *time.Location) *time.Time {
	if value == "" {
		return nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return nil
	}
	return &day
}

// Filter returns one page of the owner's orders, newest first. Invalid
// dates are ignored; out-of-range pages clamp to the nearest valid page.
func (o *OrderService) Filter(ctx context.Context, ownerID uuid.UUID, p FilterParams) (*FilterResult, error) {
	loc := o.server.Config.Location()

	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)

	f := model.OrderFilter{
		Search: strings.TrimSpace(p.Search),
		From:   parseDay(p.From, loc),
	}
	if to := parseDay(p.To, loc); to != nil {
		next := to.AddDate(0, 0, 1)
		f.To = &next
	}
	if status := strings.TrimSpace(p.Status); !strings.EqualFold(status, "all") {
		f.Status = status
	}

	total, err := o.orders.CountFiltered(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}

	totalPages := max(int(math.Ceil(float64(total)/float64(perPage))), 1)
	page := min(max(p.Page, 1), totalPages)

	f.Limit = perPage
	f.Offset = (page - 1) * perPage

	orders, err := o.orders.ListFiltered(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}

	return &FilterResult{
		Orders:      orders,
		TotalOrders: total,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}
