package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"creatordesk/internal/domain"
)

const brandColumns = `id,workspace_id,name,industry,website,contact_name,contact_title,contact_email,contact_phone,source,estimated_value,pipeline_stage,notes,tags_json,next_follow_up_at,created_at,updated_at`

// nameMatchOrder ranks an exact case-insensitive name first, then the most
// recently updated row. Bind the search term once for it.
const nameMatchOrder = `ORDER BY (fold(name) = fold(?)) DESC, updated_at DESC, id ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrand(row rowScanner) (domain.Brand, error) {
	var (
		b                                                     domain.Brand
		industry, website, cName, cTitle, cEmail, cPhone, src sql.NullString
		notes, followUp                                       sql.NullString
		value                                                 sql.NullFloat64
		tags                                                  string
	)
	err := row.Scan(&b.ID, &b.WorkspaceID, &b.Name, &industry, &website, &cName, &cTitle, &cEmail, &cPhone, &src,
		&value, &b.PipelineStage, &notes, &tags, &followUp, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	b.Industry = industry.String
	b.Website = website.String
	b.ContactName = cName.String
	b.ContactTitle = cTitle.String
	b.ContactEmail = cEmail.String
	b.ContactPhone = cPhone.String
	b.Source = src.String
	b.Notes = notes.String
	b.EstimatedValue = floatPtr(value)
	b.NextFollowUpAt = strPtr(followUp)
	b.Tags = decodeTags(tags)
	return b, nil
}

func (r Repo) InsertBrand(ctx context.Context, tx *sql.Tx, b domain.Brand) error {
	if b.ID == "" || b.WorkspaceID == "" {
		return errors.New("brand id and workspace id required")
	}
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("brand name required")
	}
	if b.PipelineStage == "" {
		b.PipelineStage = domain.StageResearch
	}
	now := r.now()
	if b.CreatedAt == "" {
		b.CreatedAt = now
	}
	if b.UpdatedAt == "" {
		b.UpdatedAt = b.CreatedAt
	}
	var followUp any
	if b.NextFollowUpAt != nil {
		followUp = *b.NextFollowUpAt
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO brands(`+brandColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.WorkspaceID, b.Name, nullable(b.Industry), nullable(b.Website), nullable(b.ContactName), nullable(b.ContactTitle),
		nullable(b.ContactEmail), nullable(b.ContactPhone), nullable(b.Source), nullableFloat(b.EstimatedValue), b.PipelineStage,
		nullable(b.Notes), encodeTags(b.Tags), followUp, b.CreatedAt, b.UpdatedAt)
	return err
}

// GetBrand returns a brand by exact id inside the workspace.
func (r Repo) GetBrand(ctx context.Context, tx *sql.Tx, workspaceID, id string) (domain.Brand, error) {
	return scanBrand(r.q(tx).QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE workspace_id=? AND id=?`, workspaceID, id))
}

// FindBrand resolves a brand by case-insensitive substring of its name.
func (r Repo) FindBrand(ctx context.Context, tx *sql.Tx, workspaceID, name string) (domain.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Brand{}, ErrNotFound
	}
	return scanBrand(r.q(tx).QueryRowContext(ctx,
		`SELECT `+brandColumns+` FROM brands WHERE workspace_id=? AND instr(fold(name), fold(?)) > 0 `+nameMatchOrder+` LIMIT 1`,
		workspaceID, name, name))
}

// ListBrands returns every brand of the workspace, most recently updated first.
func (r Repo) ListBrands(ctx context.Context, workspaceID string) ([]domain.Brand, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE workspace_id=? ORDER BY updated_at DESC, id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// UpdateBrandStage sets the stage of a brand. Last write wins.
func (r Repo) UpdateBrandStage(ctx context.Context, tx *sql.Tx, workspaceID, id, stage string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE brands SET pipeline_stage=?, updated_at=? WHERE workspace_id=? AND id=?`,
		stage, r.now(), workspaceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBrandFollowUp records when the brand should be followed up next. Nil clears it.
func (r Repo) SetBrandFollowUp(ctx context.Context, tx *sql.Tx, workspaceID, id string, at *string) error {
	var v any
	if at != nil {
		v = *at
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE brands SET next_follow_up_at=?, updated_at=? WHERE workspace_id=? AND id=?`,
		v, r.now(), workspaceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
