package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
)

type SendProposalRequest struct {
	Notify bool `json:"notify"`
}

type IssueTokenRequest struct {
	Purpose string `json:"purpose" binding:"required,oneof=portal approval"`
}

// ResolveContestedRequest изменения владельца. Отсутствующие поля не меняются.
type ResolveContestedRequest struct {
	Version      *int     `json:"version"`
	Title        *string  `json:"title"`
	Notes        *string  `json:"notes"`
	Subtotal     *float64 `json:"subtotal" binding:"omitempty,gte=0"`
	Discount     *float64 `json:"discount" binding:"omitempty,gte=0,lte=100"`
	Tax          *float64 `json:"tax" binding:"omitempty,gte=0"`
	ValidityDays *int     `json:"validity_days" binding:"omitempty,gt=0"`
	Notify       bool     `json:"notify"`
}

type SendProposalResponse struct {
	Proposal    ProposalResponse `json:"proposal"`
	PortalURL   string           `json:"portal_url"`
	ApprovalURL string           `json:"approval_url"`
}

type FieldChangeResponse struct {
	Field    string  `json:"field"`
	OldValue *string `json:"old_value"`
	NewValue *string `json:"new_value"`
}

type ResolveResponse struct {
	Proposal ProposalResponse      `json:"proposal"`
	Changes  []FieldChangeResponse `json:"changes"`
}

func ToResolveResponse(p *entity.Proposal, changes []entity.FieldChange) ResolveResponse {
	resp := ResolveResponse{
		Proposal: ToProposalResponse(&entity.ProposalView{Proposal: p}),
		Changes:  make([]FieldChangeResponse, 0, len(changes)),
	}
	for _, ch := range changes {
		resp.Changes = append(resp.Changes, FieldChangeResponse{
			Field:    ch.Field,
			OldValue: ch.OldValue,
			NewValue: ch.NewValue,
		})
	}
	return resp
}

type ClientResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    *string   `json:"email"`
	Phone    *string   `json:"phone"`
	Document *string   `json:"document"`
}

type ProposalResponse struct {
	ID                  uuid.UUID       `json:"id"`
	OwnerID             uuid.UUID       `json:"owner_id"`
	ClientID            uuid.UUID       `json:"client_id"`
	Number              string          `json:"number"`
	Title               string          `json:"title"`
	Notes               *string         `json:"notes"`
	Status              string          `json:"status"`
	Subtotal            float64         `json:"subtotal"`
	Discount            float64         `json:"discount"`
	Tax                 float64         `json:"tax"`
	Total               float64         `json:"total"`
	ValidityDays        int             `json:"validity_days"`
	ExpiryDate          *time.Time      `json:"expiry_date"`
	UpdatedAfterComment bool            `json:"updated_after_comment"`
	Version             int             `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	SentAt              *time.Time      `json:"sent_at"`
	ApprovedAt          *time.Time      `json:"approved_at"`
	Client              *ClientResponse `json:"client"`
}

func ToProposalResponse(view *entity.ProposalView) ProposalResponse {
	p := view.Proposal
	resp := ProposalResponse{
		ID:                  p.ID,
		OwnerID:             p.OwnerID,
		ClientID:            p.ClientID,
		Number:              p.Number,
		Title:               p.Title,
		Notes:               p.Notes,
		Status:              p.Status.String(),
		Subtotal:            p.Subtotal,
		Discount:            p.Discount,
		Tax:                 p.Tax,
		Total:               p.Total,
		ValidityDays:        p.ValidityDays,
		ExpiryDate:          p.ExpiryDate,
		UpdatedAfterComment: p.UpdatedAfterComment,
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		SentAt:              p.SentAt,
		ApprovedAt:          p.ApprovedAt,
	}
	if view.Client != nil {
		resp.Client = &ClientResponse{
			ID:       view.Client.ID,
			Name:     view.Client.Name,
			Email:    view.Client.Email,
			Phone:    view.Client.Phone,
			Document: view.Client.Document,
		}
	}
	return resp
}

func ToProposalResponses(views []*entity.ProposalView) []ProposalResponse {
	responses := make([]ProposalResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, ToProposalResponse(view))
	}
	return responses
}

type ChangeLogResponse struct {
	ID             uuid.UUID `json:"id"`
	FieldName      string    `json:"field_name"`
	OldValue       *string   `json:"old_value"`
	NewValue       *string   `json:"new_value"`
	ChangeType     string    `json:"change_type"`
	ChangedBy      string    `json:"changed_by"`
	ClientApproval *bool     `json:"client_approval"`
	ClientIP       *string   `json:"client_ip"`
	UserAgent      *string   `json:"user_agent"`
	CreatedAt      time.Time `json:"created_at"`
}

func ToChangeLogResponses(entries []*entity.ChangeLogEntry) []ChangeLogResponse {
	out := make([]ChangeLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ChangeLogResponse{
			ID:             e.ID,
			FieldName:      e.FieldName,
			OldValue:       e.OldValue,
			NewValue:       e.NewValue,
			ChangeType:     string(e.ChangeType),
			ChangedBy:      e.ChangedBy,
			ClientApproval: e.ClientApproval,
			ClientIP:       e.ClientIP,
			UserAgent:      e.UserAgent,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}

type CommentResponse struct {
	ID          uuid.UUID `json:"id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToCommentResponse(c *entity.ClientComment) CommentResponse {
	return CommentResponse{
		ID:          c.ID,
		ClientName:  c.ClientName,
		ClientEmail: c.ClientEmail,
		Comment:     c.Comment,
		CreatedAt:   c.CreatedAt,
	}
}

func ToCommentResponses(comments []*entity.ClientComment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, ToCommentResponse(c))
	}
	return out
}
