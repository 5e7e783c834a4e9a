package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Print statuses an order moves through.
const (
	PrintStatusPending  = "Pending"
	PrintStatusComplete = "Complete"
)

// Upper bounds accepted from the upload form. A page count covers one file
// or the whole order.
const (
	MaxCopies = 1000
	MaxPages  = 10000
)

// Order is one customer submission: up to five files plus how to print them.
//
// The JSON names follow the field names the upload form posts, so the
// customer page and the owner dashboard share one vocabulary.
type Order struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	OwnerID        uuid.UUID         `json:"Owner" db:"owner_id"`
	UniqueURL      string            `json:"Unique_url" db:"unique_url"`
	OrderID        *string           `json:"OrderId" db:"order_id"`
	FileURLs       map[string]string `json:"FileUpload" db:"file_urls"`
	FileIDs        map[string]string `json:"FileUploadID" db:"file_ids"`
	FilePages      map[string]int    `json:"FilePagesCount" db:"file_pages"`
	PaperSize      string            `json:"PaperSize" db:"paper_size"`
	PaperType      string            `json:"PaperType" db:"paper_type"`
	PrintColor     string            `json:"PrintColor" db:"print_color"`
	PrintSide      string            `json:"PrintSide" db:"print_side"`
	Binding        string            `json:"Binding" db:"binding"`
	NumberOfCopies int               `json:"NumberOfCopies" db:"number_of_copies"`
	NoOfPages      int               `json:"NoOfPages" db:"no_of_pages"`
	PaymentStatus  bool              `json:"PaymentStatus" db:"payment_status"`
	PaymentAmount  decimal.Decimal   `json:"PaymentAmount" db:"payment_amount"`
	PaymentMethod  string            `json:"PaymentMethod" db:"payment_method"`
	TransactionID  *string           `json:"Transaction_id" db:"transaction_id"`
	CustomerName   *string           `json:"CustomerName" db:"customer_name"`
	PrintStatus    string            `json:"PrintStatus" db:"print_status"`
	CreatedAt      time.Time         `json:"Created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"Updated_at" db:"updated_at"`
}

// ClientOrderID returns the customer-facing order id or "".
func (o *Order) ClientOrderID() string {
	if o.OrderID == nil {
		return ""
	}
	return *o.OrderID
}

// Customer returns the customer name or "".
func (o *Order) Customer() string {
	if o.CustomerName == nil {
		return ""
	}
	return *o.CustomerName
}

// NewOrder is the insert payload built from a customer upload. Empty
// strings fall back to the column defaults.
type NewOrder struct {
	OwnerID        uuid.UUID
	UniqueURL      string
	OrderID        string
	FileURLs       map[string]string
	FileIDs        map[string]string
	FilePages      map[string]int
	PaperSize      string
	PaperType      string
	PrintColor     string
	PrintSide      string
	Binding        string
	NumberOfCopies int
	NoOfPages      int
	PaymentStatus  bool
	PaymentAmount  decimal.Decimal
	PaymentMethod  string
	TransactionID  string
	CustomerName   string
}

// OrderFilter drives the paginated order search. From is the first instant
// included and To the first instant excluded, both already resolved in the
// shop's timezone.
type OrderFilter struct {
	Search string
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// PeriodTotals aggregates one time window of a shop's orders.
type PeriodTotals struct {
	Orders       int64
	Revenue      decimal.Decimal
	Customers    int64
	PrintedPages int64
}

// StatsTotals is what the statistics query returns for a shop.
type StatsTotals struct {
	Today     PeriodTotals
	Yesterday PeriodTotals
	Overall   PeriodTotals
}

// StatsWindow bounds "today" and "yesterday" as half-open intervals.
type StatsWindow struct {
	YesterdayStart time.Time
	TodayStart     time.Time
	TomorrowStart  time.Time
}

// OrderPoint is the slice of an order that charts need.
type OrderPoint struct {
	CreatedAt     time.Time       `db:"created_at"`
	PaymentAmount decimal.Decimal `db:"payment_amount"`
}

// NewCustomer is a customer whose first order falls inside the activity window.
type NewCustomer struct {
	Name         string    `db:"customer_name"`
	FirstOrderAt time.Time `db:"first_order_at"`
}

// ActivitySource groups the raw rows the recent-activity feed is built from.
type ActivitySource struct {
	NewOrders    []Order
	PaidOrders   []Order
	Completed    []Order
	NewCustomers []NewCustomer
}
