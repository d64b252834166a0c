package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarhub-api/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var scholarshipColumns = []string{
	"id", "name", "description", "amount", "education_level", "application_end_date",
	"eligibility", "community", "gender_requirement", "status", "organization_logo",
	"application_link", "application_form_path", "created_by", "created_at", "updated_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ScholarshipRepository persists scholarship listings.
type ScholarshipRepository struct {
	db *sqlx.DB
}

// NewScholarshipRepository constructs the repository.
func NewScholarshipRepository(db *sqlx.DB) *ScholarshipRepository {
	return &ScholarshipRepository{db: db}
}

// List returns listings matching the coarse pre-filter, newest first. The
// query engine applies the full filter afterwards.
func (r *ScholarshipRepository) List(ctx context.Context, filter models.ScholarshipFilter) ([]models.Scholarship, error) {
	builder := psql.Select(scholarshipColumns...).From("scholarships")

	if level := strings.TrimSpace(filter.EducationLevel); level != "" &&
		!strings.EqualFold(level, "all") && !strings.EqualFold(level, models.EducationAllLevels) {
		builder = builder.Where(sq.Eq{"education_level": level})
	}
	if status := strings.TrimSpace(filter.Status); status != "" && !strings.EqualFold(status, "all") {
		builder = builder.Where(sq.Eq{"status": strings.ToLower(status)})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(search) + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"description": pattern},
			sq.ILike{"eligibility": pattern},
			sq.ILike{"community": pattern},
		})
	}

	query, args, err := builder.OrderBy("created_at DESC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scholarship list query: %w", err)
	}

	items := make([]models.Scholarship, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	return items, nil
}

// FindByID returns a single listing.
func (r *ScholarshipRepository) FindByID(ctx context.Context, id string) (*models.Scholarship, error) {
	query, args, err := psql.Select(scholarshipColumns...).From("scholarships").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scholarship query: %w", err)
	}
	var item models.Scholarship
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find scholarship: %w", err)
	}
	return &item, nil
}

// Create inserts a listing, assigning an ID and timestamps when missing.
func (r *ScholarshipRepository) Create(ctx context.Context, item *models.Scholarship) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt == nil {
		item.CreatedAt = &now
	}
	item.UpdatedAt = &now

	const query = `INSERT INTO scholarships (id, name, description, amount, education_level, application_end_date, eligibility, community, gender_requirement, status, organization_logo, application_link, application_form_path, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :amount, :education_level, :application_end_date, :eligibility, :community, :gender_requirement, :status, :organization_logo, :application_link, :application_form_path, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return wrapWrite("create scholarship", err)
	}
	return nil
}

// Update overwrites the editable fields of a listing.
func (r *ScholarshipRepository) Update(ctx context.Context, item *models.Scholarship) error {
	now := time.Now().UTC()
	item.UpdatedAt = &now
	const query = `UPDATE scholarships SET name = :name, description = :description, amount = :amount, education_level = :education_level,
application_end_date = :application_end_date, eligibility = :eligibility, community = :community, gender_requirement = :gender_requirement,
status = :status, organization_logo = :organization_logo, application_link = :application_link, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update scholarship: %w", err)
	}
	return expectAffected(res)
}

// SetApplicationForm records the stored application form path.
func (r *ScholarshipRepository) SetApplicationForm(ctx context.Context, id string, path *string) error {
	query, args, err := psql.Update("scholarships").
		Set("application_form_path", path).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build application form update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set application form: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a listing permanently.
func (r *ScholarshipRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scholarships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scholarship: %w", err)
	}
	return expectAffected(res)
}

// BulkUpsert inserts or replaces listings inside a transaction.
func (r *ScholarshipRepository) BulkUpsert(ctx context.Context, items []models.Scholarship) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scholarship import tx: %w", err)
	}
	const query = `INSERT INTO scholarships (id, name, description, amount, education_level, application_end_date, eligibility, community, gender_requirement, status, organization_logo, application_link, application_form_path, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :amount, :education_level, :application_end_date, :eligibility, :community, :gender_requirement, :status, :organization_logo, :application_link, :application_form_path, :created_by, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, amount = EXCLUDED.amount, education_level = EXCLUDED.education_level,
              application_end_date = EXCLUDED.application_end_date, eligibility = EXCLUDED.eligibility, community = EXCLUDED.community,
              gender_requirement = EXCLUDED.gender_requirement, status = EXCLUDED.status, organization_logo = EXCLUDED.organization_logo,
              application_link = EXCLUDED.application_link, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].CreatedAt == nil {
			items[i].CreatedAt = &now
		}
		items[i].UpdatedAt = &now
		if _, err := tx.NamedExecContext(ctx, query, items[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert scholarship %s: %w", items[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scholarship import tx: %w", err)
	}
	return nil
}

// CountByStatus returns the number of listings per persisted status.
func (r *ScholarshipRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query, args, err := psql.Select("status", "COUNT(*) AS total").From("scholarships").GroupBy("status").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status count query: %w", err)
	}
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count scholarships by status: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
