package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/opsdeskhq/opsdesk/internal/accounts"
	"github.com/opsdeskhq/opsdesk/internal/config"
	"github.com/opsdeskhq/opsdesk/internal/conversation"
	"github.com/opsdeskhq/opsdesk/internal/db"
	"github.com/opsdeskhq/opsdesk/internal/handlers"
	"github.com/opsdeskhq/opsdesk/internal/inbound"
	"github.com/opsdeskhq/opsdesk/internal/logger"
	"github.com/opsdeskhq/opsdesk/internal/message"
	"github.com/opsdeskhq/opsdesk/internal/org"
	"github.com/opsdeskhq/opsdesk/internal/server"
	"github.com/opsdeskhq/opsdesk/internal/slack"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideAccountStore,
			provideOrgStore,
			provideConversationStore,
			provideMessageStore,
			provideAccountsService,
			provideOrgService,
			provideConversationService,
			provideMessageService,
			provideSlackClient,
			provideSlackSender,
			provideOriginFilter,
			provideInboundProcessor,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideConversationsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideAccountStore(conn *pgxpool.Pool) accounts.Store { return accounts.NewStore(conn) }
func provideOrgStore(conn *pgxpool.Pool) org.Store          { return org.NewStore(conn) }
func provideConversationStore(conn *pgxpool.Pool) conversation.Store {
	return conversation.NewStore(conn)
}
func provideMessageStore(conn *pgxpool.Pool) message.Store { return message.NewStore(conn) }

func provideAccountsService(log *slog.Logger, store accounts.Store) *accounts.Service {
	return accounts.NewService(log, store)
}
func provideOrgService(log *slog.Logger, store org.Store) *org.Service {
	return org.NewService(log, store)
}
func provideConversationService(log *slog.Logger, store conversation.Store) *conversation.Service {
	return conversation.NewService(log, store)
}
func provideMessageService(log *slog.Logger, store message.Store) *message.Service {
	return message.NewService(log, store)
}

func provideSlackClient(cfg config.Config) slack.API {
	return slack.NewClient(cfg.Slack.BotToken)
}
func provideSlackSender(log *slog.Logger, client slack.API) *slack.Sender {
	return slack.NewSender(log, client)
}
func provideOriginFilter(cfg config.Config) *slack.OriginFilter {
	return slack.NewOriginFilter(cfg.Slack.BotNames)
}
func provideInboundProcessor(log *slog.Logger, filter *slack.OriginFilter, orgs *org.Service, conversations *conversation.Service, messages *message.Service, sender *slack.Sender) *inbound.Processor {
	return inbound.NewProcessor(log, filter, orgs, conversations, messages, sender)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}
func provideAuthHandler(log *slog.Logger, accountService *accounts.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, accountService, cfg.Auth.JWTSecret, expiresIn), nil
}
func provideConversationsHandler(log *slog.Logger, conversations *conversation.Service, messages *message.Service, sender *slack.Sender) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(log, conversations, messages, sender)
}
func provideWebhookHandler(log *slog.Logger, cfg config.Config, processor *inbound.Processor) *slack.WebhookHandler {
	return slack.NewWebhookHandler(log, cfg.Slack.SigningSecret, processor)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountService *accounts.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(cfg.Postgres); err != nil {
				return err
			}
			if err := accountService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
