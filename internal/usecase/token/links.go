package token

import (
	"net/url"
	"strings"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

// Links строит клиентские URL по секрету токена.
type Links struct {
	baseURL string
}

func NewLinks(baseURL string) Links {
	return Links{baseURL: strings.TrimRight(baseURL, "/")}
}

func (l Links) PortalURL(secret string) string {
	return l.baseURL + "/portal/" + url.PathEscape(secret)
}

func (l Links) ApprovalURL(secret string) string {
	return l.baseURL + "/approve/" + url.PathEscape(secret)
}

func (l Links) URLFor(t *entity.CapabilityToken) string {
	if t.Purpose == valueobject.TokenPurposeApproval {
		return l.ApprovalURL(t.Token)
	}
	return l.PortalURL(t.Token)
}
