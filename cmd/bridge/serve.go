package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/omnibridge/omnibridge/internal/boot"
	"github.com/omnibridge/omnibridge/internal/botsession"
	"github.com/omnibridge/omnibridge/internal/bridge"
	"github.com/omnibridge/omnibridge/internal/cache"
	"github.com/omnibridge/omnibridge/internal/config"
	"github.com/omnibridge/omnibridge/internal/conversation"
	"github.com/omnibridge/omnibridge/internal/db"
	"github.com/omnibridge/omnibridge/internal/desk"
	"github.com/omnibridge/omnibridge/internal/gateway"
	"github.com/omnibridge/omnibridge/internal/handlers"
	"github.com/omnibridge/omnibridge/internal/logger"
	"github.com/omnibridge/omnibridge/internal/messagelog"
	"github.com/omnibridge/omnibridge/internal/registry"
	"github.com/omnibridge/omnibridge/internal/relay"
	"github.com/omnibridge/omnibridge/internal/server"
	"github.com/omnibridge/omnibridge/internal/session"
	"github.com/omnibridge/omnibridge/internal/storage"
	"github.com/omnibridge/omnibridge/internal/vendor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runApp(cfg)
			return nil
		},
	}
}

func runApp(cfg config.Config) {
	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideDBConn,
			provideCacheStore,
			provideStorageProvider,
			provideRegistry,

			fx.Annotate(vendor.NewPGStore, fx.As(new(vendor.Store))),
			vendor.NewDirectory,

			fx.Annotate(conversation.NewPGStore, fx.As(new(conversation.Store))),
			provideConversationResolver,

			fx.Annotate(session.NewPGStore, fx.As(new(session.Store))),
			provideSessionCache,
			session.NewManager,

			fx.Annotate(messagelog.NewPGStore, fx.As(new(messagelog.Store))),
			messagelog.NewRecorder,

			provideGatewayClient,
			provideDeskClient,
			relay.NewRehoster,
			provideBotSessions,

			provideGatewayInbound,
			provideDeskInbound,
			providePipeline,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewWebhookHandler),
			provideServerHandler(handlers.NewBotSessionHandler),
			provideServerHandler(handlers.NewCustomerHandler),
			provideServerHandler(handlers.NewFilesHandler),

			provideServer,
		),
		fx.Invoke(
			startPipeline,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideLogger() *slog.Logger {
	return logger.L
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideCacheStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) cache.Store {
	store := cache.NewRedisStore(log, cfg.Redis)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				log.Warn("redis unreachable at startup, cache degrades to miss", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store
}

func provideStorageProvider(cfg config.Config) (storage.Provider, error) {
	return storage.NewS3Provider(context.Background(), cfg.Storage)
}

func provideRegistry(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (registry.Lookup, error) {
	lookup, err := registry.Open(cfg.Registry, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return lookup.Close()
		},
	})
	return lookup, nil
}

func provideConversationResolver(log *slog.Logger, store conversation.Store, rc *boot.RuntimeConfig) *conversation.Resolver {
	return conversation.NewResolver(log, store, rc.ConversationTTL)
}

func provideSessionCache(store cache.Store, rc *boot.RuntimeConfig) *session.Cache {
	return session.NewCache(store, rc.SessionCacheTTL)
}

func provideGatewayClient(cfg config.Config, log *slog.Logger) *gateway.Client {
	return gateway.NewClient(cfg.Gateway, log)
}

func provideDeskClient(cfg config.Config, log *slog.Logger) *desk.Client {
	return desk.NewClient(cfg.Desk, log)
}

func provideBotSessions(store cache.Store, lookup registry.Lookup, rc *boot.RuntimeConfig, log *slog.Logger) *botsession.Service {
	return botsession.NewService(store, lookup, rc.IntakeSessionTTL, log)
}

func provideGatewayInbound(
	vendors *vendor.Directory,
	conversations *conversation.Resolver,
	sessions *session.Manager,
	deskClient *desk.Client,
	audit *messagelog.Recorder,
	log *slog.Logger,
) *bridge.GatewayInbound {
	return bridge.NewGatewayInbound(vendors, conversations, sessions, deskClient, audit, log)
}

func provideDeskInbound(
	vendors *vendor.Directory,
	conversations *conversation.Resolver,
	sessions *session.Manager,
	routeCache *session.Cache,
	gatewayClient *gateway.Client,
	rehoster *relay.Rehoster,
	audit *messagelog.Recorder,
	log *slog.Logger,
) *bridge.DeskInbound {
	return bridge.NewDeskInbound(vendors, conversations, sessions, routeCache, gatewayClient, rehoster, audit, log)
}

func providePipeline(rc *boot.RuntimeConfig, log *slog.Logger) *bridge.Pipeline {
	return bridge.NewPipeline(rc.PipelineWorkers, rc.PipelineQueueSize, log)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startPipeline(lc fx.Lifecycle, pipeline *bridge.Pipeline) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pipeline.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pipeline.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
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
