package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/example/ec-fulfillment/internal/readmodel"
)

// PostgresCacheStore backs the projection caches of the order service, which
// reads product snapshots inside its placement transaction and therefore
// wants them next to the order rows.
type PostgresCacheStore struct {
	db *sql.DB
}

func NewPostgresCacheStore(db *sql.DB) *PostgresCacheStore {
	return &PostgresCacheStore{db: db}
}

func (s *PostgresCacheStore) UpsertProduct(ctx context.Context, p *readmodel.ProductCache) error {
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return err
	}
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_products (id, sku, name, primary_image_url, categories, variants, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			primary_image_url = EXCLUDED.primary_image_url,
			categories = EXCLUDED.categories,
			variants = EXCLUDED.variants,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.SKU, p.Name, nullable(p.PrimaryImageURL), categories, variants, p.UpdatedAt)
	return err
}

// DeleteProduct removes the cached product; absence is not an error.
func (s *PostgresCacheStore) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_products WHERE id = $1`, id)
	return err
}

func (s *PostgresCacheStore) GetProduct(ctx context.Context, id string) (*readmodel.ProductCache, error) {
	var (
		p          readmodel.ProductCache
		imageURL   sql.NullString
		categories []byte
		variants   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, name, primary_image_url, categories, variants, updated_at
		FROM cache_products WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.Name, &imageURL, &categories, &variants, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInCache
	}
	if err != nil {
		return nil, err
	}
	p.PrimaryImageURL = imageURL.String
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, err
		}
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *PostgresCacheStore) UpsertUser(ctx context.Context, u *readmodel.UserCache) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_users (id, name, email, profile_image, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			profile_image = EXCLUDED.profile_image,
			updated_at = EXCLUDED.updated_at
	`, u.ID, u.Name, u.Email, nullable(u.ProfileImage), u.UpdatedAt)
	return err
}

func (s *PostgresCacheStore) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_users WHERE id = $1`, id)
	return err
}

func (s *PostgresCacheStore) GetUser(ctx context.Context, id string) (*readmodel.UserCache, error) {
	var (
		u            readmodel.UserCache
		profileImage sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, profile_image, updated_at FROM cache_users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &profileImage, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInCache
	}
	if err != nil {
		return nil, err
	}
	u.ProfileImage = profileImage.String
	return &u, nil
}
