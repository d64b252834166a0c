package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

var settingColumns = []string{"key", "value", "type", "description", "updated_by", "updated_at"}

const settingConflictClause = `ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type,
description = EXCLUDED.description, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`

// SettingRepository stores admin-editable site settings in the
// site_settings table. Absent keys mean "use the built-in default".
type SettingRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSettingRepository constructs the repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db, now: time.Now}
}

// ListByKeys returns the stored rows among keys, ordered by key.
func (r *SettingRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Setting, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(settingColumns...).
		From("site_settings").
		Where(sq.Eq{"key": keys}).
		OrderBy("key ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settings query: %w", err)
	}
	var rows []models.Setting
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return rows, nil
}

// Get fetches one setting; sql.ErrNoRows is returned unwrapped when absent.
func (r *SettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	query, args, err := psql.Select(settingColumns...).From("site_settings").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build setting query: %w", err)
	}
	var row models.Setting
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes one setting and stamps its UpdatedAt.
func (r *SettingRepository) Upsert(ctx context.Context, cfg *models.Setting) error {
	rows := []models.Setting{*cfg}
	if err := r.BulkUpsert(ctx, rows); err != nil {
		return err
	}
	cfg.UpdatedAt = rows[0].UpdatedAt
	return nil
}

// BulkUpsert writes every row in a single INSERT .. ON CONFLICT statement,
// so either all settings change or none do.
func (r *SettingRepository) BulkUpsert(ctx context.Context, cfgs []models.Setting) error {
	if len(cfgs) == 0 {
		return nil
	}
	now := r.now().UTC()
	insert := psql.Insert("site_settings").Columns(settingColumns...)
	for i := range cfgs {
		cfgs[i].UpdatedAt = now
		c := cfgs[i]
		insert = insert.Values(c.Key, c.Value, string(c.Type), c.Description, c.UpdatedBy, c.UpdatedAt)
	}
	query, args, err := insert.Suffix(settingConflictClause).ToSql()
	if err != nil {
		return fmt.Errorf("build settings upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// Delete removes a stored setting so its built-in default applies again.
// It reports whether a row existed.
func (r *SettingRepository) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM site_settings WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	return n > 0, nil
}
