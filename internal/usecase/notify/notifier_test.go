package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/memory"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/notification"
	"github.com/ignatzorin/proposal-portal/internal/usecase/notify"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []notification.Request
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req notification.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	return d.err
}

func seed(t *testing.T, email *string) (*memory.Store, *entity.Proposal) {
	t.Helper()
	logger.Discard()

	mem := memory.NewStore()
	client := &entity.Client{ID: uuid.New(), OwnerID: uuid.New(), Name: "ООО Ромашка", Email: email}
	mem.AddClient(client)

	p, err := entity.NewProposal(client.OwnerID, client.ID, "PRP-0007", "Аудит сайта", 500, 0, 0, 14)
	require.NoError(t, err)
	mem.AddProposal(p)
	return mem, p
}

func TestNotify_BuildsLinks(t *testing.T) {
	email := "client@example.com"
	mem, p := seed(t, &email)
	d := &recordingDispatcher{}
	n := notify.NewNotifier(d, mem.Reads(), token.NewLinks("https://portal.example.com/"))

	portal := &entity.CapabilityToken{Purpose: valueobject.TokenPurposePortal, Token: "p-secret"}
	approval := &entity.CapabilityToken{Purpose: valueobject.TokenPurposeApproval, Token: "a-secret"}
	n.Notify(context.Background(), notification.KindSent, p.ID, portal, approval)

	require.Len(t, d.reqs, 1)
	req := d.reqs[0]
	assert.Equal(t, notification.KindSent, req.Kind)
	assert.Equal(t, "client@example.com", req.ClientEmail)
	assert.Equal(t, "ООО Ромашка", req.ClientName)
	assert.Equal(t, "PRP-0007", req.ProposalNumber)
	assert.Equal(t, "https://portal.example.com/portal/p-secret", req.ProposalURL)
	assert.Equal(t, "https://portal.example.com/approve/a-secret", req.ApprovalURL)
}

func TestNotify_WithoutApprovalToken(t *testing.T) {
	email := "client@example.com"
	mem, p := seed(t, &email)
	d := &recordingDispatcher{}
	n := notify.NewNotifier(d, mem.Reads(), token.NewLinks("https://portal.example.com"))

	portal := &entity.CapabilityToken{Purpose: valueobject.TokenPurposePortal, Token: "p-secret"}
	n.Notify(context.Background(), notification.KindRevised, p.ID, portal, nil)

	require.Len(t, d.reqs, 1)
	assert.Empty(t, d.reqs[0].ApprovalURL)
}

func TestNotify_SkipsClientWithoutEmail(t *testing.T) {
	mem, p := seed(t, nil)
	d := &recordingDispatcher{}
	n := notify.NewNotifier(d, mem.Reads(), token.NewLinks("https://portal.example.com"))

	portal := &entity.CapabilityToken{Purpose: valueobject.TokenPurposePortal, Token: "p-secret"}
	n.Notify(context.Background(), notification.KindSent, p.ID, portal, nil)

	assert.Empty(t, d.reqs)
}

func TestNotify_DispatchErrorIsSwallowed(t *testing.T) {
	email := "client@example.com"
	mem, p := seed(t, &email)
	d := &recordingDispatcher{err: errors.New("smtp down")}
	n := notify.NewNotifier(d, mem.Reads(), token.NewLinks("https://portal.example.com"))

	portal := &entity.CapabilityToken{Purpose: valueobject.TokenPurposePortal, Token: "p-secret"}
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), notification.KindSent, p.ID, portal, nil)
	})
	assert.Len(t, d.reqs, 1)
}

func TestNotify_UnknownProposal(t *testing.T) {
	mem, _ := seed(t, nil)
	d := &recordingDispatcher{}
	n := notify.NewNotifier(d, mem.Reads(), token.NewLinks("https://portal.example.com"))

	portal := &entity.CapabilityToken{Purpose: valueobject.TokenPurposePortal, Token: "p-secret"}
	n.Notify(context.Background(), notification.KindSent, uuid.New(), portal, nil)

	assert.Empty(t, d.reqs)
}
