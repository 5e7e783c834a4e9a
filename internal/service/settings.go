package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/hub"
	"github.com/deppfellow/autoprintx/internal/lib/imaging"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
)

// Settings sections.
const (
	SectionGeneral       = "general"
	SectionProfile       = "profile"
	SectionNotifications = "notifications"
	SectionBilling       = "billing"
)

const maxAvatarSize = 10 << 20

type SettingsUser struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	ShopName         string `json:"shop_name"`
	OwnerFullname    string `json:"owner_fullname"`
	OwnerPhoneNumber string `json:"owner_phone_number"`
	OwnerShopAddress string `json:"owner_shop_address"`
	OwnerShopImage   string `json:"owner_shop_image"`
}

type SettingsView struct {
	Message string       `json:"message"`
	User    SettingsUser `json:"user"`
}

type SettingsUpdate struct {
	Section string
	Data    map[string]any
	Avatar  *UploadFile
}

type SettingsUpdateResult struct {
	Message     string         `json:"message"`
	UpdatedData map[string]any `json:"updated_data"`
}

type SettingsService struct {
	server *server.Server
	owners OwnerStore
	now    func() time.Time
}

func NewSettingsService(s *server.Server, owners OwnerStore) *SettingsService {
	return &SettingsService{
		server: s,
		owners: owners,
		now:    time.Now,
	}
}

// Get returns the owner's current settings.
func (s *SettingsService) Get(ctx context.Context, ownerID uuid.UUID) (*SettingsView, error) {
	owner, err := s.owners.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &SettingsView{
		Message: fmt.Sprintf("User Found: %s. Use POST to update settings.", owner.Username),
		User: SettingsUser{
			Username:         owner.Username,
			Email:            owner.Email,
			ShopName:         owner.ShopName,
			OwnerFullname:    owner.OwnerFullname,
			OwnerPhoneNumber: owner.OwnerPhoneNumber,
			OwnerShopAddress: owner.OwnerShopAddress,
			OwnerShopImage:   owner.ShopImage(),
		},
	}, nil
}

// stringField reads key from data. Numbers are accepted and formatted;
// absent, null and other values leave the column unchanged.
func stringField(data map[string]any, key string) *string {
	switch v := data[key].(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case json.Number:
		s := v.String()
		return &s
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Update applies one settings section. general and profile write to the
// owner record; notifications and billing are accepted without effect.
func (s *SettingsService) Update(ctx context.Context, ownerID uuid.UUID, in SettingsUpdate) (*SettingsUpdateResult, error) {
	update := model.OwnerUpdate{ID: ownerID}

	switch in.Section {
	case SectionGeneral:
		update.ShopName = stringField(in.Data, "shopName")
		update.Email = stringField(in.Data, "email")
		if phone := stringField(in.Data, "phone"); phone != nil {
			cleaned := strings.TrimSpace(*phone)
			if !model.IsRealPhone(cleaned) {
				cleaned = ""
			}
			update.OwnerPhoneNumber = &cleaned
		}
		update.OwnerShopAddress = stringField(in.Data, "address")

	case SectionProfile:
		update.OwnerFullname = stringField(in.Data, "firstName")
		update.Email = stringField(in.Data, "email")

		if in.Avatar != nil {
			url, err := s.storeAvatar(ctx, ownerID, in.Avatar)
			if err != nil {
				return nil, err
			}
			update.OwnerShopImage = &url
		}

	case SectionNotifications, SectionBilling:
		return s.updated(in), nil

	default:
		return nil, errs.NewBadRequestError(
			fmt.Sprintf("Invalid section '%s' or update failed.", in.Section), true, nil, nil, nil)
	}

	owner, err := s.owners.UpdateSettings(ctx, update)
	if err != nil {
		return nil, err
	}

	invalidateOwnerCache(ctx, s.server, owner.ID, owner.UniqueURL, s.now())

	err = s.server.Hub.Publish(ctx, hub.Event{
		Type:    hub.EventSettingsUpdated,
		OwnerID: owner.ID,
		Data:    map[string]string{"section": in.Section},
	})
	if err != nil {
		s.server.Logger.Warn().Err(err).Msg("failed to publish settings event")
	}

	s.server.Logger.Info().
		Str("user_id", ownerID.String()).
		Str("section", in.Section).
		Msg("settings updated")
	return s.updated(in), nil
}

func (s *SettingsService) updated(in SettingsUpdate) *SettingsUpdateResult {
	return &SettingsUpdateResult{
		Message:     capitalize(in.Section) + " settings updated successfully.",
		UpdatedData: in.Data,
	}
}

// storeAvatar downscales the image and uploads it as a JPEG.
func (s *SettingsService) storeAvatar(ctx context.Context, ownerID uuid.UUID, avatar *UploadFile) (string, error) {
	if avatar.Size > maxAvatarSize {
		return "", errs.NewPayloadTooLargeError("Avatar exceeds 10MB limit.", true)
	}

	rc, err := avatar.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open avatar: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxAvatarSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read avatar: %w", err)
	}

	resized, err := imaging.Downscale(raw, imaging.AvatarMaxWidth)
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		return "", errs.NewBadRequestError("Avatar must be a PNG or JPEG image.", true, nil,
			[]errs.FieldError{{Field: "avatar", Error: err.Error()}}, nil)
	}
	if err != nil {
		return "", fmt.Errorf("failed to process avatar: %w", err)
	}

	obj, err := s.server.Storage.Upload(ctx, resized, "avatar-"+ownerID.String()+".jpg", "image/jpeg")
	if err != nil {
		s.server.Logger.Error().Err(err).Str("user_id", ownerID.String()).Msg("avatar upload failed")
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return obj.URL, nil
}
