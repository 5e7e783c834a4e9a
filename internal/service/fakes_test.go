package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/lib/hub"
	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/lib/storage"
	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*server.Server, *fakeStorage) {
	t.Helper()

	logger := zerolog.Nop()
	cfg := &config.Config{
		Primary: config.Primary{Env: "test", Timezone: "UTC"},
		Auth: config.AuthConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
	store := &fakeStorage{}

	return &server.Server{
		Config:  cfg,
		Logger:  &logger,
		Cache:   cache.NewMemoryStore(),
		Hub:     hub.New(&logger, nil),
		Tokens:  token.NewManager(cfg.Auth, token.NewMemoryBlacklist()),
		Storage: store,
	}, store
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func notFound(table string) error {
	return sqlerr.WrapNotFound(table, pgx.ErrNoRows)
}

type fakeOwners struct {
	mu        sync.Mutex
	owners    []*model.Owner
	takenURLs map[string]bool
}

func (f *fakeOwners) add(o *model.Owner) *model.Owner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	f.owners = append(f.owners, o)
	return o
}

func (f *fakeOwners) find(match func(*model.Owner) bool) (*model.Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.owners {
		if match(o) {
			clone := *o
			return &clone, nil
		}
	}
	return nil, notFound("owners")
}

func (f *fakeOwners) Create(_ context.Context, p model.NewOwner) (*model.Owner, error) {
	o := f.add(&model.Owner{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		UniqueURL:    p.UniqueURL,
		ShopName:     model.DefaultShopName,
	})
	clone := *o
	return &clone, nil
}

func (f *fakeOwners) GetByID(_ context.Context, id uuid.UUID) (*model.Owner, error) {
	return f.find(func(o *model.Owner) bool { return o.ID == id })
}

func (f *fakeOwners) GetByUsername(_ context.Context, username string) (*model.Owner, error) {
	return f.find(func(o *model.Owner) bool { return o.Username == username })
}

func (f *fakeOwners) GetByEmail(_ context.Context, email string) (*model.Owner, error) {
	return f.find(func(o *model.Owner) bool { return strings.EqualFold(o.Email, email) })
}

func (f *fakeOwners) GetByPhone(_ context.Context, phone string) (*model.Owner, error) {
	phone = strings.TrimSpace(phone)
	if !model.IsRealPhone(phone) {
		return nil, notFound("owners")
	}
	return f.find(func(o *model.Owner) bool { return o.OwnerPhoneNumber == phone })
}

func (f *fakeOwners) GetByUniqueURL(_ context.Context, uniqueURL string) (*model.Owner, error) {
	return f.find(func(o *model.Owner) bool { return o.UniqueURL == uniqueURL })
}

func (f *fakeOwners) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeOwners) UniqueURLExists(ctx context.Context, uniqueURL string) (bool, error) {
	if f.takenURLs[uniqueURL] {
		return true, nil
	}
	_, err := f.GetByUniqueURL(ctx, uniqueURL)
	return err == nil, nil
}

func (f *fakeOwners) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.owners {
		if o.ID == id {
			o.PasswordHash = hash
			return nil
		}
	}
	return notFound("owners")
}

func (f *fakeOwners) UpdateSettings(_ context.Context, u model.OwnerUpdate) (*model.Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	for _, o := range f.owners {
		if o.ID != u.ID {
			continue
		}
		set(&o.ShopName, u.ShopName)
		set(&o.Email, u.Email)
		set(&o.OwnerFullname, u.OwnerFullname)
		set(&o.OwnerPhoneNumber, u.OwnerPhoneNumber)
		set(&o.OwnerShopAddress, u.OwnerShopAddress)
		if u.OwnerShopImage != nil {
			img := *u.OwnerShopImage
			o.OwnerShopImage = &img
		}
		o.InfoModified = true
		clone := *o
		return &clone, nil
	}
	return nil, notFound("owners")
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    []model.Order
	createErr error

	totals     *model.StatsTotals
	totalsHits int
	points     []model.OrderPoint
	pointsHits int
	since      time.Time
	activity   *model.ActivitySource
	lastFilter model.OrderFilter
}

func (f *fakeOrders) Create(_ context.Context, p model.NewOrder) (*model.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	o := model.Order{
		ID:             uuid.New(),
		OwnerID:        p.OwnerID,
		UniqueURL:      p.UniqueURL,
		FileURLs:       p.FileURLs,
		FileIDs:        p.FileIDs,
		FilePages:      p.FilePages,
		PaperSize:      p.PaperSize,
		NumberOfCopies: p.NumberOfCopies,
		NoOfPages:      p.NoOfPages,
		PaymentStatus:  p.PaymentStatus,
		PaymentAmount:  p.PaymentAmount,
		PrintStatus:    model.PrintStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if p.OrderID != "" {
		o.OrderID = &p.OrderID
	}
	if p.CustomerName != "" {
		o.CustomerName = &p.CustomerName
	}
	f.orders = append(f.orders, o)
	return &o, nil
}

func (f *fakeOrders) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrders) LastUpdatedAt(_ context.Context, ownerID uuid.UUID) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last time.Time
	for _, o := range f.orders {
		if o.OwnerID == ownerID && o.UpdatedAt.After(last) {
			last = o.UpdatedAt
		}
	}
	return last, !last.IsZero(), nil
}

func (f *fakeOrders) matching(ownerID uuid.UUID, flt model.OrderFilter) []model.Order {
	var out []model.Order
	for _, o := range f.orders {
		if o.OwnerID != ownerID {
			continue
		}
		if flt.Status != "" && !strings.EqualFold(o.PrintStatus, flt.Status) {
			continue
		}
		if flt.Search != "" {
			q := strings.ToLower(flt.Search)
			if !strings.Contains(strings.ToLower(o.Customer()), q) && !strings.Contains(strings.ToLower(o.ClientOrderID()), q) {
				continue
			}
		}
		if flt.From != nil && o.CreatedAt.Before(*flt.From) {
			continue
		}
		if flt.To != nil && !o.CreatedAt.Before(*flt.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeOrders) CountFiltered(_ context.Context, ownerID uuid.UUID, flt model.OrderFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matching(ownerID, flt)), nil
}

func (f *fakeOrders) ListFiltered(_ context.Context, ownerID uuid.UUID, flt model.OrderFilter) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	all := f.matching(ownerID, flt)
	if flt.Offset >= len(all) {
		return nil, nil
	}
	return all[flt.Offset:min(flt.Offset+flt.Limit, len(all))], nil
}

func (f *fakeOrders) MarkComplete(_ context.Context, ownerID uuid.UUID, ref string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		o := &f.orders[i]
		if o.OwnerID == ownerID && (o.ClientOrderID() == ref || o.ID.String() == ref) {
			o.PrintStatus = model.PrintStatusComplete
			o.UpdatedAt = time.Now()
			clone := *o
			return &clone, nil
		}
	}
	return nil, notFound("orders")
}

func (f *fakeOrders) Totals(context.Context, string, model.StatsWindow) (*model.StatsTotals, error) {
	f.totalsHits++
	if f.totals == nil {
		return &model.StatsTotals{}, nil
	}
	return f.totals, nil
}

func (f *fakeOrders) Points(_ context.Context, _ string, since time.Time) ([]model.OrderPoint, error) {
	f.pointsHits++
	f.since = since
	return f.points, nil
}

func (f *fakeOrders) ActivitySince(context.Context, uuid.UUID, time.Time) (*model.ActivitySource, error) {
	if f.activity == nil {
		return &model.ActivitySource{}, nil
	}
	return f.activity, nil
}

type fakeOTPs struct {
	mu      sync.Mutex
	records []*model.OTPVerification
	now     func() time.Time
}

func (f *fakeOTPs) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

func (f *fakeOTPs) Create(_ context.Context, ownerID *uuid.UUID, emailOrPhone, code string, expiresAt time.Time) (*model.OTPVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &model.OTPVerification{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		EmailOrPhone: emailOrPhone,
		OTP:          code,
		CreatedAt:    f.clock(),
		ExpiresAt:    expiresAt,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeOTPs) Latest(_ context.Context, emailOrPhone string) (*model.OTPVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].EmailOrPhone == emailOrPhone {
			clone := *f.records[i]
			return &clone, nil
		}
	}
	return nil, notFound("otp_verifications")
}

func (f *fakeOTPs) LatestVerified(_ context.Context, emailOrPhone string, now time.Time) (*model.OTPVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.EmailOrPhone == emailOrPhone && r.IsVerified && r.ExpiresAt.After(now) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, notFound("otp_verifications")
}

func (f *fakeOTPs) byID(id uuid.UUID) *model.OTPVerification {
	for _, r := range f.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeOTPs) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID(id).Attempts++
	return nil
}

func (f *fakeOTPs) MarkVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID(id).IsVerified = true
	return nil
}

func (f *fakeOTPs) CountSince(_ context.Context, emailOrPhone string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.EmailOrPhone == emailOrPhone && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeOTPs) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeOTPs) DeleteFor(_ context.Context, emailOrPhone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if r.EmailOrPhone != emailOrPhone {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type fakeMailer struct {
	sent []job.OTPEmailPayload
	err  error
}

func (f *fakeMailer) EnqueueOTPEmail(_ context.Context, p job.OTPEmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	failOn   string
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, filename, _ string) (*storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filename == f.failOn {
		return nil, fmt.Errorf("storage unavailable")
	}
	id := fmt.Sprintf("file-%d", len(f.uploaded)+1)
	f.uploaded = append(f.uploaded, filename)
	return &storage.Object{URL: "https://cdn.test/" + filename, FileID: id, Name: filename}, nil
}

func (f *fakeStorage) Delete(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileID)
	return nil
}

func memFile(name, content string) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
