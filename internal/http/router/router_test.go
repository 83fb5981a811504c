package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/proposal-portal/internal/config"
	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/http/router"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/memory"
	"github.com/ignatzorin/proposal-portal/internal/interface/http/handler"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/notification"
	"github.com/ignatzorin/proposal-portal/internal/service"
	"github.com/ignatzorin/proposal-portal/internal/usecase/approval"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
	"github.com/ignatzorin/proposal-portal/internal/usecase/contestation"
	"github.com/ignatzorin/proposal-portal/internal/usecase/notify"
	"github.com/ignatzorin/proposal-portal/internal/usecase/proposal"
	"github.com/ignatzorin/proposal-portal/internal/usecase/token"
	"github.com/ignatzorin/proposal-portal/internal/ws"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	portalBase = "https://portal.test"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type app struct {
	engine  *gin.Engine
	mem     *memory.Store
	hub     *ws.Hub
	tokens  *service.TokenManager
	ownerID uuid.UUID
	access  string
	client  *entity.Client
}

func newApp(t *testing.T, rateLimit int64) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"https://app.test"},
		RateLimitLimit:  rateLimit,
		RateLimitPeriod: time.Minute,
	}

	mem := memory.NewStore()
	links := token.NewLinks(portalBase)
	tokenStore := token.NewStore(mem.Tokens(), token.Config{})
	auditLog := audit.NewLog(mem.ChangeLog(), time.Now)
	notifier := notify.NewNotifier(notification.LogDispatcher{}, mem.Reads(), links)
	tokenManager := service.NewTokenManager(testSecret, time.Hour)

	hub := ws.NewHub(mem, mem.Reads())
	go hub.Run(ctx)

	proposalHandler := handler.NewProposalHandler(
		proposal.NewListMyProposalsUseCase(mem.Reads()),
		proposal.NewGetProposalUseCase(mem.Reads()),
		proposal.NewGetHistoryUseCase(mem.Reads(), auditLog),
		proposal.NewListCommentsUseCase(mem.Reads(), mem.Comments()),
		proposal.NewListTokensUseCase(mem.Reads(), tokenStore),
		proposal.NewSendProposalUseCase(mem, tokenStore, auditLog, notifier, links),
		proposal.NewIssueTokenUseCase(mem, tokenStore, links),
		contestation.NewResolveContestedUseCase(mem, tokenStore, auditLog, notifier),
	)
	publicHandler := handler.NewPublicHandler(
		proposal.NewPortalUseCase(mem, mem.Reads(), tokenStore),
		approval.NewApproveUseCase(mem, tokenStore, auditLog),
		contestation.NewSubmitCommentUseCase(mem, tokenStore, auditLog),
	)

	var rateStore limiter.Store = limitermemory.NewStore()
	engine := router.SetupRouter(cfg, proposalHandler, publicHandler,
		handler.NewWSHandler(hub, cfg.AllowedOrigins), handler.NewHealthHandler(nil), tokenManager, rateStore)

	ownerID := uuid.New()
	access, _, err := tokenManager.GenerateAccess(ownerID)
	require.NoError(t, err)

	email := "compras@cliente.com"
	client := &entity.Client{ID: uuid.New(), OwnerID: ownerID, Name: "Cliente Ltda", Email: &email}
	mem.AddClient(client)

	return &app{engine: engine, mem: mem, hub: hub, tokens: tokenManager, ownerID: ownerID, access: access, client: client}
}

func (a *app) draft(t *testing.T) *entity.Proposal {
	t.Helper()
	p, err := entity.NewProposal(a.ownerID, a.client.ID, "PRP-0001", "Reforma", 1000, 0, 0, 15)
	require.NoError(t, err)
	a.mem.AddProposal(p)
	return p
}

func (a *app) do(t *testing.T, method, path string, body any, owner bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "router-test")
	if owner {
		req.Header.Set("Authorization", "Bearer "+a.access)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

type sendData struct {
	Proposal struct {
		ID      uuid.UUID `json:"id"`
		Status  string    `json:"status"`
		Version int       `json:"version"`
	} `json:"proposal"`
	PortalURL   string `json:"portal_url"`
	ApprovalURL string `json:"approval_url"`
}

func (a *app) send(t *testing.T, p *entity.Proposal) (portal, approvalSecret string) {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/send", map[string]bool{"notify": false}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data sendData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "sent", data.Proposal.Status)

	portal = strings.TrimPrefix(data.PortalURL, portalBase+"/portal/")
	approvalSecret = strings.TrimPrefix(data.ApprovalURL, portalBase+"/approve/")
	require.NotEmpty(t, portal)
	require.NotEmpty(t, approvalSecret)
	return portal, approvalSecret
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t, 100)

	w, _ := a.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storage":"memory"`)

	w, _ = a.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proposal_portal_")
}

func TestOwnerRoutesRequireAuth(t *testing.T) {
	a := newApp(t, 100)

	w, env := a.do(t, http.MethodGet, "/api/proposals", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = a.do(t, http.MethodGet, "/api/proposals/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendApproveFlow(t *testing.T) {
	a := newApp(t, 100)
	p := a.draft(t)
	portal, approvalSecret := a.send(t, p)

	w, env := a.do(t, http.MethodGet, "/api/public/portal/"+portal, nil, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Proposal struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"proposal"`
		Items []any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, "PRP-0001", page.Proposal.Number)
	assert.Equal(t, "sent", page.Proposal.Status)

	w, env = a.do(t, http.MethodPost, "/api/public/approve", map[string]string{"token": approvalSecret, "client_name": "Maria"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	w, env = a.do(t, http.MethodPost, "/api/public/approve", map[string]string{"token": approvalSecret}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOKEN_ALREADY_USED", env.Error.Code)

	w, env = a.do(t, http.MethodGet, "/api/proposals/"+p.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"approved"`)

	// IP и User-Agent берутся из запроса
	w, env = a.do(t, http.MethodGet, "/api/proposals/"+p.ID.String()+"/tokens", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var tokens []struct {
		Purpose         string  `json:"purpose"`
		UsedAt          *string `json:"used_at"`
		ClientUserAgent *string `json:"client_user_agent"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.Len(t, tokens, 2)
	for _, tok := range tokens {
		if tok.Purpose == "approval" {
			require.NotNil(t, tok.UsedAt)
			require.NotNil(t, tok.ClientUserAgent)
			assert.Equal(t, "router-test", *tok.ClientUserAgent)
		}
	}
	assert.NotContains(t, string(env.Data), approvalSecret)
}

func TestContestResolveFlow(t *testing.T) {
	a := newApp(t, 100)
	p := a.draft(t)
	portal, _ := a.send(t, p)

	w, _ := a.do(t, http.MethodPost, "/api/public/comments", map[string]string{
		"token":        portal,
		"client_name":  "Maria",
		"client_email": "maria@cliente.com",
		"comments":     "Pode dar desconto?",
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := a.do(t, http.MethodGet, "/api/proposals/"+p.ID.String()+"/comments", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Pode dar desconto?")

	w, env = a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/resolve", map[string]any{"version": 1}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	w, env = a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/resolve", map[string]any{"discount": 10, "notify": true}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resolved struct {
		Proposal struct {
			Status              string  `json:"status"`
			Total               float64 `json:"total"`
			UpdatedAfterComment bool    `json:"updated_after_comment"`
		} `json:"proposal"`
		Changes []struct {
			Field string `json:"field"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, "sent", resolved.Proposal.Status)
	assert.InDelta(t, 900.0, resolved.Proposal.Total, 0.001)
	assert.True(t, resolved.Proposal.UpdatedAfterComment)
	assert.NotEmpty(t, resolved.Changes)

	w, env = a.do(t, http.MethodGet, "/api/public/portal/"+portal, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"client_seen_update":false`)

	w, _ = a.do(t, http.MethodPost, "/api/public/portal/"+portal+"/seen", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = a.do(t, http.MethodGet, "/api/public/portal/"+portal, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"client_seen_update":true`)

	w, env = a.do(t, http.MethodGet, "/api/proposals/"+p.ID.String()+"/history", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"field_name":"discount"`)
}

func TestPublicValidation(t *testing.T) {
	a := newApp(t, 100)

	w, env := a.do(t, http.MethodPost, "/api/public/comments", map[string]string{"token": "x", "client_name": "Maria", "client_email": "nope", "comments": "oi"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = a.do(t, http.MethodGet, "/api/public/portal/unknown-secret", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOKEN_NOT_FOUND", env.Error.Code)
}

func TestIssueToken(t *testing.T) {
	a := newApp(t, 100)
	p := a.draft(t)

	w, env := a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/tokens", map[string]string{"purpose": "portal"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)

	a.send(t, p)
	w, env = a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/tokens", map[string]string{"purpose": "approval"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), portalBase+"/approve/")

	w, _ = a.do(t, http.MethodPost, "/api/proposals/"+p.ID.String()+"/tokens", map[string]string{"purpose": "admin"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForeignOwnerForbidden(t *testing.T) {
	a := newApp(t, 100)
	other, err := entity.NewProposal(uuid.New(), a.client.ID, "PRP-0002", "Outro", 100, 0, 0, 5)
	require.NoError(t, err)
	a.mem.AddProposal(other)

	w, env := a.do(t, http.MethodGet, "/api/proposals/"+other.ID.String(), nil, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestPublicRateLimit(t *testing.T) {
	a := newApp(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := a.do(t, http.MethodGet, "/api/public/portal/unknown", nil, false)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	// Маршруты владельца лимитом не ограничены.
	w, _ := a.do(t, http.MethodGet, "/api/proposals", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketSync(t *testing.T) {
	a := newApp(t, 100)
	p := a.draft(t)

	server := httptest.NewServer(a.engine)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + a.access
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	type message struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	read := func() message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	snapshot := read()
	assert.Equal(t, "sync.snapshot", snapshot.Type)
	assert.Contains(t, string(snapshot.Data), p.ID.String())
	require.Eventually(t, func() bool { return a.hub.SessionCount(a.ownerID) == 1 }, 2*time.Second, 10*time.Millisecond)

	a.send(t, p)

	seen := map[string]bool{}
	for !(seen["proposal.updated"] && seen["proposal.status_changed"]) {
		msg := read()
		seen[msg.Type] = true
		if msg.Type == "proposal.status_changed" {
			assert.Contains(t, string(msg.Data), `"to":"sent"`)
		}
	}
}

func TestWebSocketRejectsWithoutToken(t *testing.T) {
	a := newApp(t, 100)
	server := httptest.NewServer(a.engine)
	t.Cleanup(server.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
