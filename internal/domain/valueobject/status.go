package valueobject

import "github.com/ignatzorin/proposal-portal/internal/pkg/apperror"

// ProposalStatus единственное каноническое перечисление статусов предложения.
// Все workflow используют только эти константы.
type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "draft"
	ProposalStatusSent      ProposalStatus = "sent"
	ProposalStatusApproved  ProposalStatus = "approved"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusExpired   ProposalStatus = "expired"
	ProposalStatusNFeIssued ProposalStatus = "nfe_issued"
	ProposalStatusContested ProposalStatus = "contested"
)

// AllProposalStatuses в порядке отображения.
var AllProposalStatuses = []ProposalStatus{
	ProposalStatusDraft,
	ProposalStatusSent,
	ProposalStatusApproved,
	ProposalStatusRejected,
	ProposalStatusExpired,
	ProposalStatusNFeIssued,
	ProposalStatusContested,
}

func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusSent, ProposalStatusApproved, ProposalStatusRejected,
		ProposalStatusExpired, ProposalStatusNFeIssued, ProposalStatusContested:
		return true
	}
	return false
}

// IsClientVisible сообщает, видит ли клиент предложение в портале.
func (s ProposalStatus) IsClientVisible() bool {
	return s.IsValid() && s != ProposalStatusDraft
}

func (s ProposalStatus) String() string {
	return string(s)
}

func NewProposalStatus(status string) (ProposalStatus, error) {
	s := ProposalStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус предложения")
	}
	return s, nil
}

// TokenPurpose назначение capability-токена.
type TokenPurpose string

const (
	// TokenPurposePortal многоразовый токен со скользящим сроком действия.
	TokenPurposePortal TokenPurpose = "portal"
	// TokenPurposeApproval одноразовый токен с жёстким сроком действия.
	TokenPurposeApproval TokenPurpose = "approval"
)

func (p TokenPurpose) IsValid() bool {
	return p == TokenPurposePortal || p == TokenPurposeApproval
}

func (p TokenPurpose) String() string {
	return string(p)
}

func NewTokenPurpose(purpose string) (TokenPurpose, error) {
	p := TokenPurpose(purpose)
	if !p.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректное назначение токена")
	}
	return p, nil
}
