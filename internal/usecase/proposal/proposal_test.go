package proposal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/memory"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/notification"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/notify"
	"github.com/ignatzorin/proposal-portal/internal/usecase/proposal"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	requests []notification.Request
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req notification.Request) error {
	d.requests = append(d.requests, req)
	return nil
}

type fixture struct {
	mem        *memory.Store
	clock      *clock
	tokens     *token.Store
	audit      *audit.Log
	dispatcher *recordingDispatcher
	links      token.Links
	ownerID    uuid.UUID
	client     *entity.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Discard()

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mem := memory.NewStore()
	ownerID := uuid.New()
	email := "compras@cliente.com"
	client := &entity.Client{ID: uuid.New(), OwnerID: ownerID, Name: "Cliente Ltda", Email: &email}
	mem.AddClient(client)

	return &fixture{
		mem:        mem,
		clock:      clk,
		tokens:     token.NewStore(mem.Tokens(), token.Config{}, token.WithClock(clk.Now)),
		audit:      audit.NewLog(mem.ChangeLog(), clk.Now),
		dispatcher: &recordingDispatcher{},
		links:      token.NewLinks("https://portal.test"),
		ownerID:    ownerID,
		client:     client,
	}
}

func (f *fixture) draft(t *testing.T) *entity.Proposal {
	t.Helper()
	p, err := entity.NewProposal(f.ownerID, f.client.ID, "PRP-0100", "Consultoria", 2500, 0, 0, 10)
	require.NoError(t, err)
	f.mem.AddProposal(p)
	return p
}

func (f *fixture) sendUseCase() *proposal.SendProposalUseCase {
	notifier := notify.NewNotifier(f.dispatcher, f.mem.Reads(), f.links)
	return proposal.NewSendProposalUseCase(f.mem, f.tokens, f.audit, notifier, f.links)
}

func (f *fixture) send(t *testing.T) *proposal.SendProposalResult {
	t.Helper()
	p := f.draft(t)
	result, err := f.sendUseCase().Execute(context.Background(), proposal.SendProposalInput{ProposalID: p.ID, OwnerID: f.ownerID})
	require.NoError(t, err)
	return result
}

func TestSendProposal(t *testing.T) {
	f := newFixture(t)
	p := f.draft(t)
	ctx := context.Background()

	result, err := f.sendUseCase().Execute(ctx, proposal.SendProposalInput{ProposalID: p.ID, OwnerID: f.ownerID, Notify: true})
	require.NoError(t, err)

	now := f.clock.Now()
	assert.Equal(t, valueobject.ProposalStatusSent, result.Proposal.Status)
	require.NotNil(t, result.Proposal.SentAt)
	assert.Equal(t, now, *result.Proposal.SentAt)
	assert.Equal(t, now.AddDate(0, 0, 10), *result.Proposal.ExpiryDate)

	assert.Equal(t, valueobject.TokenPurposePortal, result.Portal.Purpose)
	assert.Equal(t, valueobject.TokenPurposeApproval, result.Approval.Purpose)
	assert.Equal(t, "https://portal.test/portal/"+result.Portal.Token, result.PortalURL)
	assert.Equal(t, "https://portal.test/approve/"+result.Approval.Token, result.ApprovalURL)

	entries, err := f.mem.ChangeLog().ListByProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "draft", *entries[0].OldValue)
	assert.Equal(t, "sent", *entries[0].NewValue)
	assert.Equal(t, f.ownerID.String(), entries[0].ChangedBy)

	require.Len(t, f.dispatcher.requests, 1)
	req := f.dispatcher.requests[0]
	assert.Equal(t, notification.KindSent, req.Kind)
	assert.Equal(t, "PRP-0100", req.ProposalNumber)
	assert.Equal(t, result.ApprovalURL, req.ApprovalURL)
}

func TestSendProposal_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.send(t)

	_, err := f.sendUseCase().Execute(ctx, proposal.SendProposalInput{ProposalID: result.Proposal.ID, OwnerID: f.ownerID})
	assert.Equal(t, apperror.ErrCodeInvalidTransition, apperror.CodeOf(err))

	other := f.draft(t)
	_, err = f.sendUseCase().Execute(ctx, proposal.SendProposalInput{ProposalID: other.ID, OwnerID: uuid.New()})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.sendUseCase().Execute(ctx, proposal.SendProposalInput{ProposalID: uuid.New(), OwnerID: f.ownerID})
	assert.ErrorIs(t, err, apperror.ErrProposalNotFound)

	tokens, err := f.tokens.ListForProposal(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.send(t)
	uc := proposal.NewIssueTokenUseCase(f.mem, f.tokens, f.links)

	issued, err := uc.Execute(ctx, proposal.IssueTokenInput{ProposalID: sent.Proposal.ID, OwnerID: f.ownerID, Purpose: valueobject.TokenPurposePortal})
	require.NoError(t, err)
	assert.Equal(t, sent.Portal.ID, issued.Token.ID, "живой портальный токен переиспользуется")
	assert.Equal(t, sent.PortalURL, issued.URL)

	draft := f.draft(t)
	_, err = uc.Execute(ctx, proposal.IssueTokenInput{ProposalID: draft.ID, OwnerID: f.ownerID, Purpose: valueobject.TokenPurposePortal})
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))

	_, err = uc.Execute(ctx, proposal.IssueTokenInput{ProposalID: sent.Proposal.ID, OwnerID: f.ownerID, Purpose: "admin"})
	assert.True(t, apperror.IsValidation(err))
}

func TestOwnerReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.send(t)
	id := sent.Proposal.ID
	stranger := uuid.New()

	view, err := proposal.NewGetProposalUseCase(f.mem.Reads()).Execute(ctx, id, f.ownerID)
	require.NoError(t, err)
	require.NotNil(t, view.Client)
	assert.Equal(t, "Cliente Ltda", view.Client.Name)

	_, err = proposal.NewGetProposalUseCase(f.mem.Reads()).Execute(ctx, id, stranger)
	assert.True(t, apperror.IsForbidden(err))

	list, err := proposal.NewListMyProposalsUseCase(f.mem.Reads()).Execute(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	history, err := proposal.NewGetHistoryUseCase(f.mem.Reads(), f.audit).Execute(ctx, id, f.ownerID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	comments, err := proposal.NewListCommentsUseCase(f.mem.Reads(), f.mem.Comments()).Execute(ctx, id, f.ownerID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	tokens, err := proposal.NewListTokensUseCase(f.mem.Reads(), f.tokens).Execute(ctx, id, f.ownerID)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	_, err = proposal.NewListTokensUseCase(f.mem.Reads(), f.tokens).Execute(ctx, id, stranger)
	assert.True(t, apperror.IsForbidden(err))
}

func TestPortalView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent := f.send(t)
	f.mem.AddItems(sent.Proposal.ID,
		entity.ProposalItem{ID: uuid.New(), ProposalID: sent.Proposal.ID, Description: "Etapa 2", Quantity: 1, UnitPrice: 1500, Total: 1500, Position: 2},
		entity.ProposalItem{ID: uuid.New(), ProposalID: sent.Proposal.ID, Description: "Etapa 1", Quantity: 1, UnitPrice: 1000, Total: 1000, Position: 1},
	)
	uc := proposal.NewPortalUseCase(f.mem, f.mem.Reads(), f.tokens)

	page, err := uc.View(ctx, sent.Portal.Token)
	require.NoError(t, err)
	assert.Equal(t, sent.Proposal.ID, page.View.Proposal.ID)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Etapa 1", page.Items[0].Description)
	assert.Nil(t, page.Company)
	assert.True(t, page.ClientSeenUpdate)

	f.mem.SetCompany(&entity.Company{OwnerID: f.ownerID, Name: "Estúdio Azul"})
	require.NoError(t, f.tokens.MarkUpdateUnseen(ctx, sent.Proposal.ID))

	page, err = uc.View(ctx, sent.Portal.Token)
	require.NoError(t, err)
	require.NotNil(t, page.Company)
	assert.Equal(t, "Estúdio Azul", page.Company.Name)
	assert.False(t, page.ClientSeenUpdate)

	require.NoError(t, uc.MarkSeen(ctx, sent.Portal.Token))
	page, err = uc.View(ctx, sent.Portal.Token)
	require.NoError(t, err)
	assert.True(t, page.ClientSeenUpdate)

	stored, err := f.mem.Tokens().FindByToken(ctx, sent.Portal.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AccessCount, "MarkSeen не считается обращением")

	_, err = uc.View(ctx, sent.Approval.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenWrongPurpose)
}

func TestPortalView_DraftIsHiddenWithoutCountingAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.draft(t)
	tok, err := f.tokens.Issue(ctx, draft.ID, valueobject.TokenPurposePortal)
	require.NoError(t, err)

	uc := proposal.NewPortalUseCase(f.mem, f.mem.Reads(), f.tokens)
	_, err = uc.View(ctx, tok.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenNotFound)

	stored, err := f.mem.Tokens().FindByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Zero(t, stored.AccessCount)
	assert.Nil(t, stored.LastAccessedAt)
}

func TestExpirySweeper(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.send(t)

	f.clock.Advance(5 * 24 * time.Hour)
	fresh := f.send(t)

	f.clock.Advance(6 * 24 * time.Hour)
	sweeper := proposal.NewExpirySweeper(f.mem, f.mem.Proposals(), f.audit, f.clock.Now)

	expired, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.mem.Proposals().FindByID(ctx, stale.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProposalStatusExpired, got.Status)

	got, err = f.mem.Proposals().FindByID(ctx, fresh.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProposalStatusSent, got.Status)

	entries, err := f.mem.ChangeLog().ListByProposal(ctx, stale.Proposal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.ChangedBySystem, entries[0].ChangedBy)
	assert.Equal(t, "expired", *entries[0].NewValue)

	expired, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestExpirySweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := proposal.NewExpirySweeper(f.mem, f.mem.Proposals(), f.audit, f.clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper не остановился после отмены контекста")
	}
}
