package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsFixture struct {
	svc     *SettingsService
	owners  *fakeOwners
	storage *fakeStorage
	owner   *model.Owner
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()
	s, store := newTestServer(t)

	f := &settingsFixture{owners: &fakeOwners{}, storage: store}
	f.owner = f.owners.add(&model.Owner{
		Username:  "asha",
		Email:     "asha@example.com",
		ShopName:  model.DefaultShopName,
		UniqueURL: "asha-shop",
	})
	f.svc = NewSettingsService(s, f.owners)
	f.svc.now = func() time.Time { return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func pngAvatar(t *testing.T, w, h int) UploadFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	raw := buf.Bytes()
	return UploadFile{
		Name:        "me.png",
		Size:        int64(len(raw)),
		ContentType: "image/png",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		},
	}
}

func TestGetSettings(t *testing.T) {
	f := newSettingsFixture(t)

	view, err := f.svc.Get(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "User Found: asha. Use POST to update settings.", view.Message)
	assert.Equal(t, model.DefaultShopName, view.User.ShopName)
	assert.Empty(t, view.User.OwnerShopImage)
}

func TestUpdateGeneralSettings(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	key := cache.OwnerKey(f.owner.ID, cache.EndpointOrdersOverview)
	require.NoError(t, f.svc.server.Cache.Set(ctx, key, "stale", time.Minute))

	client := f.svc.server.Hub.Subscribe(f.owner.ID)
	defer f.svc.server.Hub.Unsubscribe(client)

	data := map[string]any{
		"shopName": "Asha Xerox",
		"phone":    float64(9876501234),
		"address":  "12 MG Road",
	}
	res, err := f.svc.Update(ctx, f.owner.ID, SettingsUpdate{Section: SectionGeneral, Data: data})
	require.NoError(t, err)
	assert.Equal(t, "General settings updated successfully.", res.Message)
	assert.Equal(t, data, res.UpdatedData)

	owner, err := f.owners.GetByID(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Xerox", owner.ShopName)
	assert.Equal(t, "9876501234", owner.OwnerPhoneNumber)
	assert.Equal(t, "12 MG Road", owner.OwnerShopAddress)
	assert.Equal(t, "asha@example.com", owner.Email, "absent fields are left alone")
	assert.True(t, owner.InfoModified)

	var cached string
	found, err := f.svc.server.Cache.Get(ctx, key, &cached)
	require.NoError(t, err)
	assert.False(t, found)

	select {
	case frame := <-client.Events():
		assert.Contains(t, string(frame), "settings.updated")
	case <-time.After(time.Second):
		t.Fatal("no settings event published")
	}
}

func TestUpdateGeneralSettingsPlaceholderPhoneClears(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()

	for _, phone := range []any{" 9876501234 ", model.DefaultOwnerField, "  "} {
		_, err := f.svc.Update(ctx, f.owner.ID, SettingsUpdate{
			Section: SectionGeneral,
			Data:    map[string]any{"phone": phone},
		})
		require.NoError(t, err)
	}

	owner, err := f.owners.GetByID(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, owner.OwnerPhoneNumber)

	_, err = f.owners.GetByPhone(ctx, model.DefaultOwnerField)
	assert.True(t, isNotFound(err))
}

func TestUpdateProfileWithAvatar(t *testing.T) {
	f := newSettingsFixture(t)
	ctx := context.Background()
	avatar := pngAvatar(t, 800, 600)

	res, err := f.svc.Update(ctx, f.owner.ID, SettingsUpdate{
		Section: SectionProfile,
		Data:    map[string]any{"firstName": "Asha Rao"},
		Avatar:  &avatar,
	})
	require.NoError(t, err)
	assert.Equal(t, "Profile settings updated successfully.", res.Message)

	require.Len(t, f.storage.uploaded, 1)
	assert.Equal(t, "avatar-"+f.owner.ID.String()+".jpg", f.storage.uploaded[0])

	owner, err := f.owners.GetByID(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", owner.OwnerFullname)
	assert.Equal(t, "https://cdn.test/"+f.storage.uploaded[0], owner.ShopImage())
}

func TestUpdateProfileRejectsBadAvatar(t *testing.T) {
	f := newSettingsFixture(t)
	avatar := memFile("me.png", "not really a png")

	_, err := f.svc.Update(context.Background(), f.owner.ID, SettingsUpdate{
		Section: SectionProfile,
		Data:    map[string]any{},
		Avatar:  &avatar,
	})
	requireHTTPError(t, err, http.StatusBadRequest)
	assert.Empty(t, f.storage.uploaded)
}

func TestUpdateProfileRejectsLargeAvatar(t *testing.T) {
	f := newSettingsFixture(t)
	avatar := memFile("me.png", "x")
	avatar.Size = maxAvatarSize + 1

	_, err := f.svc.Update(context.Background(), f.owner.ID, SettingsUpdate{Section: SectionProfile, Avatar: &avatar})
	requireHTTPError(t, err, http.StatusRequestEntityTooLarge)
}

func TestUpdateNotificationsIsAccepted(t *testing.T) {
	f := newSettingsFixture(t)

	res, err := f.svc.Update(context.Background(), f.owner.ID, SettingsUpdate{
		Section: SectionNotifications,
		Data:    map[string]any{"email": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Notifications settings updated successfully.", res.Message)

	owner, err := f.owners.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.False(t, owner.InfoModified)
}

func TestUpdateUnknownSection(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.Update(context.Background(), f.owner.ID, SettingsUpdate{Section: "theme", Data: map[string]any{}})
	httpErr := requireHTTPError(t, err, http.StatusBadRequest)
	assert.Equal(t, "Invalid section 'theme' or update failed.", httpErr.Message)
}
