package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/config"
	"github.com/ignatzorin/proposal-portal/internal/db"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/goroutine"
	"github.com/ignatzorin/proposal-portal/internal/http/middleware"
	httpRouter "github.com/ignatzorin/proposal-portal/internal/http/router"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/memory"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/persistence"
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

// storage всё, что ядру нужно от хранилища.
type storage struct {
	uow       repository.UnitOfWork
	proposals repository.ProposalRepository
	tokens    repository.TokenRepository
	comments  repository.CommentRepository
	changeLog repository.ChangeLogRepository
	reads     repository.ProposalReadRepository
	source    changesync.Source
	dbConn    *sqlx.DB
	close     func()
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить хранилище")
	}
	defer st.close()

	// Уведомления клиентам.
	var sender notification.Dispatcher = notification.LogDispatcher{}
	if cfg.SMTP.IsConfigured() {
		sender = notification.NewEmailDispatcher(cfg.SMTP)
	} else {
		logger.Log.Warn("main: SMTP не настроен, уведомления только пишутся в лог")
	}
	dispatcher := notification.NewAsyncDispatcher(sender, cfg.Notify)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Сервисы ядра.
	links := token.NewLinks(cfg.PortalBaseURL)
	tokenStore := token.NewStore(st.tokens, token.Config{
		PortalTTL:   cfg.PortalTokenTTL,
		ApprovalTTL: cfg.ApprovalTokenTTL,
	})
	auditLog := audit.NewLog(st.changeLog, time.Now)
	notifier := notify.NewNotifier(dispatcher, st.reads, links)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	// Фоновые процессы.
	hub := ws.NewHub(st.source, st.reads)
	goroutine.SafeGoWithContext(ctx, hub.Run)

	if cfg.ExpirySweepInterval > 0 {
		sweeper := proposal.NewExpirySweeper(st.uow, st.proposals, auditLog, time.Now)
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			sweeper.Run(ctx, cfg.ExpirySweepInterval)
		})
	}

	rateStore, closeRateStore, err := middleware.NewRateLimitStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить rate limiter")
	}
	defer func() { _ = closeRateStore() }()

	// HTTP хэндлеры.
	proposalHandler := handler.NewProposalHandler(
		proposal.NewListMyProposalsUseCase(st.reads),
		proposal.NewGetProposalUseCase(st.reads),
		proposal.NewGetHistoryUseCase(st.reads, auditLog),
		proposal.NewListCommentsUseCase(st.reads, st.comments),
		proposal.NewListTokensUseCase(st.reads, tokenStore),
		proposal.NewSendProposalUseCase(st.uow, tokenStore, auditLog, notifier, links),
		proposal.NewIssueTokenUseCase(st.uow, tokenStore, links),
		contestation.NewResolveContestedUseCase(st.uow, tokenStore, auditLog, notifier),
	)
	publicHandler := handler.NewPublicHandler(
		proposal.NewPortalUseCase(st.uow, st.reads, tokenStore),
		approval.NewApproveUseCase(st.uow, tokenStore, auditLog),
		contestation.NewSubmitCommentUseCase(st.uow, tokenStore, auditLog),
	)
	wsHandler := handler.NewWSHandler(hub, cfg.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(st.dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, proposalHandler, publicHandler, wsHandler, healthHandler, tokenManager, rateStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

// openStorage подключает PostgreSQL с миграциями и LISTEN или хранилище в памяти для разработки.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Log.Warn("main: используется хранилище в памяти, данные не сохраняются")
		mem := memory.NewStore()
		return &storage{
			uow:       mem,
			proposals: mem.Proposals(),
			tokens:    mem.Tokens(),
			comments:  mem.Comments(),
			changeLog: mem.ChangeLog(),
			reads:     mem.Reads(),
			source:    mem,
			close:     func() { _ = mem.Close() },
		}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		safeClose(dbConn)
		return nil, err
	}

	listener, err := persistence.NewChangeListener(ctx, cfg.DatabaseURL, cfg.ListenerMinReconnect, cfg.ListenerMaxReconnect)
	if err != nil {
		safeClose(dbConn)
		return nil, err
	}

	pg := persistence.NewStore(dbConn)
	return &storage{
		uow:       pg,
		proposals: pg.Proposals(),
		tokens:    pg.Tokens(),
		comments:  pg.Comments(),
		changeLog: pg.ChangeLog(),
		reads:     pg.Reads(),
		source:    listener,
		dbConn:    dbConn,
		close: func() {
			if err := listener.Close(); err != nil {
				logger.Log.WithError(err).Warn("main: ошибка закрытия LISTEN соединения")
			}
			safeClose(dbConn)
		},
	}, nil
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
