package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

type proposalRepo struct{ r repos }

func (p proposalRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	var out *entity.Proposal
	err := p.r.with(func(st *state) error {
		found, ok := st.proposals[id]
		if !ok {
			return apperror.ErrProposalNotFound
		}
		out = found.Clone()
		return nil
	})
	return out, err
}

// FindByIDForUpdate в памяти совпадает с FindByID: транзакции и так сериализованы.
func (p proposalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return p.FindByID(ctx, id)
}

func (p proposalRepo) Update(ctx context.Context, proposal *entity.Proposal) error {
	err := p.r.with(func(st *state) error {
		current, ok := st.proposals[proposal.ID]
		if !ok {
			return apperror.ErrProposalNotFound
		}
		if current.Version != proposal.Version {
			return apperror.ErrVersionConflict
		}
		stored := proposal.Clone()
		stored.Version++
		st.proposals[proposal.ID] = stored
		return nil
	})
	if err != nil {
		return err
	}
	proposal.Version++
	p.r.touch(proposal)
	return nil
}

func (p proposalRepo) ListSentExpiredBefore(ctx context.Context, now time.Time, limit int) ([]*entity.Proposal, error) {
	var out []*entity.Proposal
	err := p.r.with(func(st *state) error {
		for _, proposal := range st.proposals {
			if proposal.Status == valueobject.ProposalStatusSent && proposal.IsPastExpiry(now) {
				out = append(out, proposal.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(*out[j].ExpiryDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type readRepo struct{ r repos }

func (rr readRepo) FindView(ctx context.Context, id uuid.UUID) (*entity.ProposalView, error) {
	var out *entity.ProposalView
	err := rr.r.with(func(st *state) error {
		proposal, ok := st.proposals[id]
		if !ok {
			return apperror.ErrProposalNotFound
		}
		out = st.view(proposal)
		return nil
	})
	return out, err
}

func (rr readRepo) ListViewsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.ProposalView, error) {
	var out []*entity.ProposalView
	err := rr.r.with(func(st *state) error {
		for _, proposal := range st.proposals {
			if proposal.OwnerID == ownerID {
				out = append(out, st.view(proposal))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Proposal.CreatedAt.After(out[j].Proposal.CreatedAt)
	})
	return out, err
}

func (rr readRepo) FindItems(ctx context.Context, proposalID uuid.UUID) ([]entity.ProposalItem, error) {
	var out []entity.ProposalItem
	err := rr.r.with(func(st *state) error {
		out = append(out, st.items[proposalID]...)
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, err
}

func (rr readRepo) FindCompany(ctx context.Context, ownerID uuid.UUID) (*entity.Company, error) {
	var out *entity.Company
	err := rr.r.with(func(st *state) error {
		company, ok := st.companies[ownerID]
		if !ok {
			return apperror.ErrCompanyNotFound
		}
		cp := *company
		out = &cp
		return nil
	})
	return out, err
}

func (s *state) view(proposal *entity.Proposal) *entity.ProposalView {
	view := &entity.ProposalView{Proposal: proposal.Clone()}
	if client, ok := s.clients[proposal.ClientID]; ok {
		cp := *client
		view.Client = &cp
	}
	return view
}

type tokenRepo struct{ r repos }

func (t tokenRepo) Create(ctx context.Context, token *entity.CapabilityToken) error {
	return t.r.with(func(st *state) error {
		for _, existing := range st.tokens {
			if existing.Token == token.Token {
				return apperror.New(apperror.ErrCodeDatabaseError, "токен с таким значением уже существует")
			}
		}
		st.tokens[token.ID] = token.Clone()
		return nil
	})
}

func (t tokenRepo) FindByToken(ctx context.Context, secret string) (*entity.CapabilityToken, error) {
	var out *entity.CapabilityToken
	err := t.r.with(func(st *state) error {
		found := st.tokenBySecret(secret)
		if found == nil {
			return apperror.ErrTokenNotFound
		}
		out = found.Clone()
		return nil
	})
	return out, err
}

func (t tokenRepo) FindReusable(ctx context.Context, proposalID uuid.UUID, purpose valueobject.TokenPurpose, now time.Time) (*entity.CapabilityToken, error) {
	var out *entity.CapabilityToken
	err := t.r.with(func(st *state) error {
		for _, token := range st.tokens {
			if token.ProposalID != proposalID || token.Purpose != purpose || !token.IsReusable(now) {
				continue
			}
			if out == nil || token.CreatedAt.After(out.CreatedAt) {
				out = token
			}
		}
		if out != nil {
			out = out.Clone()
		}
		return nil
	})
	return out, err
}

func (t tokenRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.CapabilityToken, error) {
	var out []*entity.CapabilityToken
	err := t.r.with(func(st *state) error {
		for _, token := range st.tokens {
			if token.ProposalID == proposalID {
				out = append(out, token.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (t tokenRepo) RecordAccess(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error {
	return t.r.with(func(st *state) error {
		token, ok := st.tokens[id]
		if !ok {
			return apperror.ErrTokenNotFound
		}
		token.AccessCount++
		at := accessedAt
		token.LastAccessedAt = &at
		token.ExpiresAt = expiresAt
		return nil
	})
}

func (t tokenRepo) ConsumeApproval(ctx context.Context, secret string, now time.Time, info entity.ClientInfo) (bool, error) {
	consumed := false
	err := t.r.with(func(st *state) error {
		token := st.tokenBySecret(secret)
		if token == nil || token.Purpose != valueobject.TokenPurposeApproval {
			return nil
		}
		if token.UsedAt != nil || token.IsExpired(now) {
			return nil
		}
		at := now
		token.UsedAt = &at
		token.ClientIP = info.IPPtr()
		token.ClientUserAgent = info.UserAgentPtr()
		consumed = true
		return nil
	})
	return consumed, err
}

func (t tokenRepo) SetSeenUpdateByProposal(ctx context.Context, proposalID uuid.UUID, seen bool) (int64, error) {
	var affected int64
	err := t.r.with(func(st *state) error {
		for _, token := range st.tokens {
			if token.ProposalID == proposalID && token.Purpose == valueobject.TokenPurposePortal {
				token.ClientSeenUpdate = seen
				affected++
			}
		}
		return nil
	})
	return affected, err
}

func (t tokenRepo) SetSeenUpdateByToken(ctx context.Context, secret string, seen bool) error {
	return t.r.with(func(st *state) error {
		token := st.tokenBySecret(secret)
		if token == nil || token.Purpose != valueobject.TokenPurposePortal {
			return apperror.ErrTokenNotFound
		}
		token.ClientSeenUpdate = seen
		return nil
	})
}

func (s *state) tokenBySecret(secret string) *entity.CapabilityToken {
	for _, token := range s.tokens {
		if token.Token == secret {
			return token
		}
	}
	return nil
}

type commentRepo struct{ r repos }

func (c commentRepo) Create(ctx context.Context, comment *entity.ClientComment) error {
	return c.r.with(func(st *state) error {
		cp := *comment
		st.comments = append(st.comments, &cp)
		return nil
	})
}

func (c commentRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ClientComment, error) {
	var out []*entity.ClientComment
	err := c.r.with(func(st *state) error {
		for i := len(st.comments) - 1; i >= 0; i-- {
			if st.comments[i].ProposalID == proposalID {
				cp := *st.comments[i]
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

type changeLogRepo struct{ r repos }

func (c changeLogRepo) Append(ctx context.Context, entry *entity.ChangeLogEntry) error {
	return c.r.with(func(st *state) error {
		cp := *entry
		st.changeLog = append(st.changeLog, &cp)
		return nil
	})
}

// ListByProposal от новых к старым; при равном created_at новее та, что добавлена позже.
func (c changeLogRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.ChangeLogEntry, error) {
	var out []*entity.ChangeLogEntry
	err := c.r.with(func(st *state) error {
		for i := len(st.changeLog) - 1; i >= 0; i-- {
			if st.changeLog[i].ProposalID == proposalID {
				cp := *st.changeLog[i]
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// AddClient заводит клиента. Управление клиентами живёт вне портала.
func (s *Store) AddClient(client *entity.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *client
	s.state.clients[client.ID] = &cp
}

func (s *Store) SetCompany(company *entity.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *company
	s.state.companies[company.OwnerID] = &cp
}

// AddProposal сохраняет предложение и публикует событие insert.
func (s *Store) AddProposal(proposal *entity.Proposal) {
	s.mu.Lock()
	s.state.proposals[proposal.ID] = proposal.Clone()
	s.mu.Unlock()
	s.emit(changesync.Event{Type: changesync.EventInsert, ProposalID: proposal.ID, OwnerID: proposal.OwnerID})
}

func (s *Store) AddItems(proposalID uuid.UUID, items ...entity.ProposalItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.items[proposalID] = append(s.state.items[proposalID], items...)
}

// DeleteProposal удаляет предложение с позициями и токенами. Журнал изменений остаётся.
func (s *Store) DeleteProposal(id uuid.UUID) {
	s.mu.Lock()
	proposal, ok := s.state.proposals[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.state.proposals, id)
	delete(s.state.items, id)
	for tokenID, token := range s.state.tokens {
		if token.ProposalID == id {
			delete(s.state.tokens, tokenID)
		}
	}
	s.mu.Unlock()
	s.emit(changesync.Event{Type: changesync.EventDelete, ProposalID: id, OwnerID: proposal.OwnerID})
}
