package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ownersTable = "owners"

const ownerColumns = `
	id, username, email, password_hash, unique_url, shop_name, owner_fullname,
	COALESCE(owner_phone_number, '') AS owner_phone_number,
	owner_shop_address, owner_nationality, owner_shop_image,
	info_modified, created_at, updated_at`

type OwnerRepository struct {
	db dbtx
}

func NewOwnerRepository(db dbtx) *OwnerRepository {
	return &OwnerRepository{db: db}
}

func (r *OwnerRepository) getOne(ctx context.Context, where string, args pgx.NamedArgs) (*model.Owner, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ownerColumns+` FROM owners WHERE `+where+` LIMIT 1`, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query owner: %w", err)
	}

	owner, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Owner])
	if err != nil {
		return nil, sqlerr.WrapNotFound(ownersTable, err)
	}
	return &owner, nil
}

// Create inserts a new owner; column defaults fill the shop metadata.
func (r *OwnerRepository) Create(ctx context.Context, params model.NewOwner) (*model.Owner, error) {
	stmt := `
		INSERT INTO owners (username, email, password_hash, unique_url)
		VALUES (@username, @email, @password_hash, @unique_url)
		RETURNING ` + ownerColumns

	rows, err := r.db.Query(ctx, stmt, pgx.NamedArgs{
		"username":      params.Username,
		"email":         params.Email,
		"password_hash": params.PasswordHash,
		"unique_url":    params.UniqueURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert owner: %w", err)
	}

	owner, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Owner])
	if err != nil {
		return nil, fmt.Errorf("failed to collect owner: %w", err)
	}
	return &owner, nil
}

func (r *OwnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Owner, error) {
	return r.getOne(ctx, `id = @id`, pgx.NamedArgs{"id": id})
}

func (r *OwnerRepository) GetByUsername(ctx context.Context, username string) (*model.Owner, error) {
	return r.getOne(ctx, `username = @username`, pgx.NamedArgs{"username": username})
}

// GetByEmail matches case-insensitively.
func (r *OwnerRepository) GetByEmail(ctx context.Context, email string) (*model.Owner, error) {
	return r.getOne(ctx, `LOWER(email) = LOWER(@email)`, pgx.NamedArgs{"email": email})
}

// GetByPhone never matches a blank or placeholder number.
func (r *OwnerRepository) GetByPhone(ctx context.Context, phone string) (*model.Owner, error) {
	phone = strings.TrimSpace(phone)
	if !model.IsRealPhone(phone) {
		return nil, sqlerr.WrapNotFound(ownersTable, pgx.ErrNoRows)
	}
	return r.getOne(ctx, `owner_phone_number = @phone`, pgx.NamedArgs{"phone": phone})
}

func (r *OwnerRepository) GetByUniqueURL(ctx context.Context, uniqueURL string) (*model.Owner, error) {
	return r.getOne(ctx, `unique_url = @unique_url`, pgx.NamedArgs{"unique_url": uniqueURL})
}

func (r *OwnerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE LOWER(email) = LOWER(@email))`,
		pgx.NamedArgs{"email": email},
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *OwnerRepository) UniqueURLExists(ctx context.Context, uniqueURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE unique_url = @unique_url)`,
		pgx.NamedArgs{"unique_url": uniqueURL},
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unique url: %w", err)
	}
	return exists, nil
}

func (r *OwnerRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE owners SET password_hash = @password_hash WHERE id = @id`,
		pgx.NamedArgs{"id": id, "password_hash": passwordHash},
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.WrapNotFound(ownersTable, pgx.ErrNoRows)
	}
	return nil
}

// UpdateSettings applies the non-nil fields of u and sets info_modified.
// An empty phone clears the stored number.
func (r *OwnerRepository) UpdateSettings(ctx context.Context, u model.OwnerUpdate) (*model.Owner, error) {
	stmt := `
		UPDATE owners SET
			shop_name          = COALESCE(@shop_name, shop_name),
			email              = COALESCE(@email, email),
			owner_fullname     = COALESCE(@owner_fullname, owner_fullname),
			owner_phone_number = CASE
				WHEN @owner_phone_number::text IS NULL THEN owner_phone_number
				ELSE NULLIF(BTRIM(@owner_phone_number::text), '')
			END,
			owner_shop_address = COALESCE(@owner_shop_address, owner_shop_address),
			owner_shop_image   = COALESCE(@owner_shop_image, owner_shop_image),
			info_modified      = TRUE
		WHERE id = @id
		RETURNING ` + ownerColumns

	rows, err := r.db.Query(ctx, stmt, pgx.NamedArgs{
		"id":                 u.ID,
		"shop_name":          u.ShopName,
		"email":              u.Email,
		"owner_fullname":     u.OwnerFullname,
		"owner_phone_number": u.OwnerPhoneNumber,
		"owner_shop_address": u.OwnerShopAddress,
		"owner_shop_image":   u.OwnerShopImage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update owner settings: %w", err)
	}

	owner, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Owner])
	if err != nil {
		return nil, sqlerr.WrapNotFound(ownersTable, err)
	}
	return &owner, nil
}
