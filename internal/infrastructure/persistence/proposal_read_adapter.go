package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

const proposalViewQuery = `
	SELECT ` + proposalColumns + `,
	c.name AS client_name, c.email AS client_email, c.phone AS client_phone, c.document AS client_document
	FROM proposals p
	LEFT JOIN clients c ON c.id = p.client_id`

// ProposalReadAdapter модель чтения: предложение вместе с клиентом, позиции и компания.
type ProposalReadAdapter struct {
	db *sqlx.DB
}

func NewProposalReadAdapter(db *sqlx.DB) *ProposalReadAdapter {
	return &ProposalReadAdapter{db: db}
}

func (r *ProposalReadAdapter) FindView(ctx context.Context, id uuid.UUID) (*entity.ProposalView, error) {
	var row proposalViewRow
	if err := r.db.GetContext(ctx, &row, proposalViewQuery+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложение")
	}
	return row.toView(), nil
}

func (r *ProposalReadAdapter) ListViewsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.ProposalView, error) {
	var rows []proposalViewRow
	query := proposalViewQuery + ` WHERE p.owner_id = $1 ORDER BY p.created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложения")
	}

	result := make([]*entity.ProposalView, len(rows))
	for i := range rows {
		result[i] = rows[i].toView()
	}
	return result, nil
}

func (r *ProposalReadAdapter) FindItems(ctx context.Context, proposalID uuid.UUID) ([]entity.ProposalItem, error) {
	var rows []proposalItemRow
	query := `
		SELECT id, proposal_id, description, quantity, unit_price, total, position
		FROM proposal_items WHERE proposal_id = $1 ORDER BY position ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, proposalID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить позиции предложения")
	}

	items := make([]entity.ProposalItem, len(rows))
	for i, row := range rows {
		items[i] = entity.ProposalItem(row)
	}
	return items, nil
}

func (r *ProposalReadAdapter) FindCompany(ctx context.Context, ownerID uuid.UUID) (*entity.Company, error) {
	var row companyRow
	query := `
		SELECT owner_id, name, document, email, phone, address, logo_url
		FROM companies WHERE owner_id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrCompanyNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить профиль компании")
	}
	company := entity.Company(row)
	return &company, nil
}

type proposalViewRow struct {
	proposalRow
	ClientName     *string `db:"client_name"`
	ClientEmail    *string `db:"client_email"`
	ClientPhone    *string `db:"client_phone"`
	ClientDocument *string `db:"client_document"`
}

func (r *proposalViewRow) toView() *entity.ProposalView {
	view := &entity.ProposalView{Proposal: r.proposalRow.toEntity()}
	if r.ClientName != nil {
		view.Client = &entity.Client{
			ID:       r.ClientID,
			OwnerID:  r.OwnerID,
			Name:     *r.ClientName,
			Email:    r.ClientEmail,
			Phone:    r.ClientPhone,
			Document: r.ClientDocument,
		}
	}
	return view
}

type proposalItemRow struct {
	ID          uuid.UUID `db:"id"`
	ProposalID  uuid.UUID `db:"proposal_id"`
	Description string    `db:"description"`
	Quantity    float64   `db:"quantity"`
	UnitPrice   float64   `db:"unit_price"`
	Total       float64   `db:"total"`
	Position    int       `db:"position"`
}

type companyRow struct {
	OwnerID  uuid.UUID `db:"owner_id"`
	Name     string    `db:"name"`
	Document *string   `db:"document"`
	Email    *string   `db:"email"`
	Phone    *string   `db:"phone"`
	Address  *string   `db:"address"`
	LogoURL  *string   `db:"logo_url"`
}
