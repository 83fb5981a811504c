package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

// ApproveRequest одобрение по одноразовой ссылке. IP и User-Agent берутся из запроса, если не переданы.
type ApproveRequest struct {
	Token      string  `json:"token" binding:"required"`
	ClientName *string `json:"client_name"`
	ClientIP   string  `json:"client_ip"`
	UserAgent  string  `json:"user_agent"`
}

type ApproveResponse struct {
	ProposalID uuid.UUID `json:"proposal_id"`
}

type SubmitCommentRequest struct {
	Token       string `json:"token" binding:"required"`
	ClientName  string `json:"client_name" binding:"required,max=255"`
	ClientEmail string `json:"client_email" binding:"required,email,max=255"`
	Comments    string `json:"comments" binding:"required,max=5000"`
	ClientIP    string `json:"client_ip"`
	UserAgent   string `json:"user_agent"`
}

type TokenResponse struct {
	ID               uuid.UUID  `json:"id"`
	ProposalID       uuid.UUID  `json:"proposal_id"`
	Purpose          string     `json:"purpose"`
	ExpiresAt        time.Time  `json:"expires_at"`
	UsedAt           *time.Time `json:"used_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at"`
	AccessCount      int        `json:"access_count"`
	ClientIP         *string    `json:"client_ip"`
	ClientUserAgent  *string    `json:"client_user_agent"`
	ClientSeenUpdate bool       `json:"client_seen_update"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToTokenResponse сам секрет не раскрывает: владелец получает его только как URL при выдаче.
func ToTokenResponse(t *entity.CapabilityToken) TokenResponse {
	return TokenResponse{
		ID:               t.ID,
		ProposalID:       t.ProposalID,
		Purpose:          t.Purpose.String(),
		ExpiresAt:        t.ExpiresAt,
		UsedAt:           t.UsedAt,
		LastAccessedAt:   t.LastAccessedAt,
		AccessCount:      t.AccessCount,
		ClientIP:         t.ClientIP,
		ClientUserAgent:  t.ClientUserAgent,
		ClientSeenUpdate: t.ClientSeenUpdate,
		CreatedAt:        t.CreatedAt,
	}
}

func ToTokenResponses(tokens []*entity.CapabilityToken) []TokenResponse {
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, ToTokenResponse(t))
	}
	return out
}

type IssuedTokenResponse struct {
	TokenResponse
	URL string `json:"url"`
}

type ItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Total       float64   `json:"total"`
	Position    int       `json:"position"`
}

type CompanyResponse struct {
	Name     string  `json:"name"`
	Document *string `json:"document"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	LogoURL  *string `json:"logo_url"`
}

// PortalResponse всё, что видит клиент по портальной ссылке.
type PortalResponse struct {
	Proposal         ProposalResponse `json:"proposal"`
	Items            []ItemResponse   `json:"items"`
	Company          *CompanyResponse `json:"company"`
	ClientSeenUpdate bool             `json:"client_seen_update"`
}

func ToPortalResponse(view *entity.ProposalView, items []entity.ProposalItem, company *entity.Company, seen bool) PortalResponse {
	resp := PortalResponse{
		Proposal:         ToProposalResponse(view),
		Items:            make([]ItemResponse, 0, len(items)),
		ClientSeenUpdate: seen,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			Position:    it.Position,
		})
	}
	if company != nil {
		resp.Company = &CompanyResponse{
			Name:     company.Name,
			Document: company.Document,
			Email:    company.Email,
			Phone:    company.Phone,
			Address:  company.Address,
			LogoURL:  company.LogoURL,
		}
	}
	return resp
}
