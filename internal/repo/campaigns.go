package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"creatordesk/internal/domain"
)

const campaignColumns = `c.id,c.workspace_id,c.brand_id,b.name,c.name,c.brief,c.fee,c.start_date,c.end_date,c.payment_terms,c.usage_rights,c.exclusivity,c.status,c.created_at,c.updated_at`

const campaignFrom = ` FROM campaigns c JOIN brands b ON b.id = c.brand_id AND b.workspace_id = c.workspace_id `

// CampaignSummary is a campaign with the sizes of its related collections.
type CampaignSummary struct {
	domain.Campaign
	DeliverableCount int `json:"deliverableCount"`
	InvoiceCount     int `json:"invoiceCount"`
}

// CampaignFilters narrows SearchCampaigns. Name filters are case-insensitive
// substrings.
type CampaignFilters struct {
	Name      string
	BrandName string
	Limit     int
}

func scanCampaign(row rowScanner) (domain.Campaign, error) {
	var (
		c                                          domain.Campaign
		brief, start, end, terms, usage, exclusive sql.NullString
		fee                                        sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.BrandID, &c.BrandName, &c.Name, &brief, &fee, &start, &end, &terms, &usage, &exclusive,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Brief = brief.String
	c.Fee = floatPtr(fee)
	c.StartDate = start.String
	c.EndDate = end.String
	c.PaymentTerms = terms.String
	c.UsageRights = usage.String
	c.Exclusivity = exclusive.String
	return c, nil
}

func (r Repo) InsertCampaign(ctx context.Context, tx *sql.Tx, c domain.Campaign) error {
	if c.ID == "" || c.WorkspaceID == "" || c.BrandID == "" {
		return errors.New("campaign id, workspace id and brand id required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("campaign name required")
	}
	if c.Status == "" {
		c.Status = domain.StatusDraft
	}
	if c.CreatedAt == "" {
		c.CreatedAt = r.now()
	}
	if c.UpdatedAt == "" {
		c.UpdatedAt = c.CreatedAt
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO campaigns(id,workspace_id,brand_id,name,brief,fee,start_date,end_date,payment_terms,usage_rights,exclusivity,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.WorkspaceID, c.BrandID, c.Name, nullable(c.Brief), nullableFloat(c.Fee), nullable(c.StartDate), nullable(c.EndDate),
		nullable(c.PaymentTerms), nullable(c.UsageRights), nullable(c.Exclusivity), c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCampaign returns a campaign by exact id inside the workspace.
func (r Repo) GetCampaign(ctx context.Context, tx *sql.Tx, workspaceID, id string) (domain.Campaign, error) {
	return scanCampaign(r.q(tx).QueryRowContext(ctx, `SELECT `+campaignColumns+campaignFrom+`WHERE c.workspace_id=? AND c.id=?`, workspaceID, id))
}

// UpdateCampaignStatus sets a campaign's status.
func (r Repo) UpdateCampaignStatus(ctx context.Context, tx *sql.Tx, workspaceID, id, status string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE campaigns SET status=?, updated_at=? WHERE workspace_id=? AND id=?`, status, r.now(), workspaceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchCampaigns returns campaigns matching the filters with deliverable and
// invoice counts. Exact name matches rank first, then recency.
func (r Repo) SearchCampaigns(ctx context.Context, workspaceID string, f CampaignFilters) ([]CampaignSummary, error) {
	clauses := []string{"c.workspace_id=?"}
	args := []any{workspaceID}
	name := strings.TrimSpace(f.Name)
	brandName := strings.TrimSpace(f.BrandName)
	if name != "" {
		clauses = append(clauses, "instr(fold(c.name), fold(?)) > 0")
		args = append(args, name)
	}
	if brandName != "" {
		clauses = append(clauses, "instr(fold(b.name), fold(?)) > 0")
		args = append(args, brandName)
	}
	order := ` ORDER BY c.updated_at DESC, c.id ASC`
	if name != "" {
		order = ` ORDER BY (fold(c.name) = fold(?)) DESC, c.updated_at DESC, c.id ASC`
		args = append(args, name)
	}
	query := `SELECT ` + campaignColumns +
		`, (SELECT COUNT(*) FROM deliverables d WHERE d.campaign_id = c.id AND d.workspace_id = c.workspace_id)` +
		`, (SELECT COUNT(*) FROM invoices i WHERE i.campaign_id = c.id AND i.workspace_id = c.workspace_id)` +
		campaignFrom + `WHERE ` + strings.Join(clauses, " AND ") + order + ` LIMIT ?`
	args = append(args, normalizeLimit(f.Limit, 10, 50))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CampaignSummary
	for rows.Next() {
		var (
			s                                          CampaignSummary
			brief, start, end, terms, usage, exclusive sql.NullString
			fee                                        sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &s.BrandID, &s.BrandName, &s.Name, &brief, &fee, &start, &end, &terms, &usage, &exclusive,
			&s.Status, &s.CreatedAt, &s.UpdatedAt, &s.DeliverableCount, &s.InvoiceCount); err != nil {
			return nil, err
		}
		s.Brief = brief.String
		s.Fee = floatPtr(fee)
		s.StartDate = start.String
		s.EndDate = end.String
		s.PaymentTerms = terms.String
		s.UsageRights = usage.String
		s.Exclusivity = exclusive.String
		res = append(res, s)
	}
	return res, rows.Err()
}

// RecentCampaignsForBrand returns the newest campaigns of a brand.
func (r Repo) RecentCampaignsForBrand(ctx context.Context, workspaceID, brandID string, limit int) ([]domain.Campaign, error) {
	return r.listCampaigns(ctx, `WHERE c.workspace_id=? AND c.brand_id=? ORDER BY c.created_at DESC, c.id ASC LIMIT ?`,
		workspaceID, brandID, normalizeLimit(limit, 5, 50))
}

// CompletedCampaigns returns the newest completed campaigns of the workspace.
func (r Repo) CompletedCampaigns(ctx context.Context, workspaceID string, limit int) ([]domain.Campaign, error) {
	return r.listCampaigns(ctx, `WHERE c.workspace_id=? AND c.status=? ORDER BY c.updated_at DESC, c.id ASC LIMIT ?`,
		workspaceID, domain.CampaignCompleted, normalizeLimit(limit, 5, 50))
}

func (r Repo) listCampaigns(ctx context.Context, tail string, args ...any) ([]domain.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+campaignFrom+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertDeliverable(ctx context.Context, tx *sql.Tx, workspaceID string, d domain.Deliverable) error {
	if d.Status == "" {
		d.Status = "pending"
	}
	if d.CreatedAt == "" {
		d.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO deliverables(id,workspace_id,campaign_id,title,platform,status,due_date,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, workspaceID, d.CampaignID, d.Title, nullable(d.Platform), d.Status, nullable(d.DueDate), d.CreatedAt)
	return err
}

func (r Repo) ListDeliverables(ctx context.Context, workspaceID, campaignID string) ([]domain.Deliverable, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,campaign_id,title,COALESCE(platform,''),status,COALESCE(due_date,''),created_at FROM deliverables WHERE workspace_id=? AND campaign_id=? ORDER BY created_at ASC, id ASC`,
		workspaceID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Deliverable{}
	for rows.Next() {
		var d domain.Deliverable
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Title, &d.Platform, &d.Status, &d.DueDate, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertInvoice(ctx context.Context, tx *sql.Tx, workspaceID string, inv domain.Invoice) error {
	if inv.Status == "" {
		inv.Status = domain.StatusDraft
	}
	if inv.CreatedAt == "" {
		inv.CreatedAt = r.now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO invoices(id,workspace_id,campaign_id,number,amount,status,due_date,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		inv.ID, workspaceID, inv.CampaignID, inv.Number, inv.Amount, inv.Status, nullable(inv.DueDate), inv.CreatedAt)
	return err
}

func (r Repo) ListInvoices(ctx context.Context, workspaceID, campaignID string) ([]domain.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,campaign_id,number,amount,status,COALESCE(due_date,''),created_at FROM invoices WHERE workspace_id=? AND campaign_id=? ORDER BY created_at ASC, id ASC`,
		workspaceID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Invoice{}
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.CampaignID, &inv.Number, &inv.Amount, &inv.Status, &inv.DueDate, &inv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}
