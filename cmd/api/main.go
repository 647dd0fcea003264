package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"ventas.io/internal/auth"
	"ventas.io/internal/config"
	"ventas.io/internal/events"
	"ventas.io/internal/httpapi"
	"ventas.io/internal/identity"
	"ventas.io/internal/obs"
	"ventas.io/internal/sales"
	"ventas.io/internal/store/memory"
	"ventas.io/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "none"
)

// backend is the store behind both the resolver and the sales service.
type backend interface {
	auth.Directory
	sales.Store
}

func main() {
	configPath := flag.String("config", os.Getenv("VENTAS_CONFIG"), "Path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		obs.Logger().Fatal().Err(err).Msg("ventas-api stopped")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	obs.ConfigureLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	obs.Init()
	obs.InitBuildInfo(version, commit, cfg.Identity.Mode)
	log := obs.Logger()

	store, probe, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	validator, err := newValidator(ctx, cfg.Identity)
	if err != nil {
		return err
	}
	resolver, err := auth.NewResolver(validator, store)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	publishers := events.Multi{bus}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, "ventas-api")
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		np, err := events.NewNATSPublisher(nc, cfg.NATS.Prefix)
		if err != nil {
			return err
		}
		publishers = append(publishers, np)
		log.Info().Str("prefix", cfg.NATS.Prefix).Msg("publishing sale events to nats")
	}

	svc, err := sales.NewService(store, sales.WithPublisher(publishers), sales.WithSubscriber(bus))
	if err != nil {
		return err
	}
	api, err := httpapi.New(probe, version, resolver, svc,
		httpapi.WithCookieName(cfg.HTTP.CookieName),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		httpapi.WithRateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithStreamLifetime(cfg.HTTP.StreamLifetime),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting ventas-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen http: %w", err)
		}
		return nil
	})

	health := httpapi.NewHealthServer(probe, cfg.Server.ReadyInterval)
	g.Go(func() error {
		health.Watch(gctx)
		return nil
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcServer := grpc.NewServer()
		health.Register(grpcServer)
		g.Go(func() error {
			log.Info().Str("addr", cfg.Server.GRPCAddr).Msg("starting grpc health")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

// openStore connects to Postgres, or seeds an in-memory store for local runs
// when no database is configured.
func openStore(cfg *config.Config) (backend, httpapi.ReadyProbe, func(), error) {
	if cfg.Database.URL != "" {
		st, err := pg.Open(cfg.Database.URL)
		if err != nil {
			return nil, httpapi.ReadyProbe{}, nil, fmt.Errorf("open database: %w", err)
		}
		obs.Logger().Info().Str("database", cfg.RedactedDatabaseURL()).Msg("using postgres store")
		return st, httpapi.ReadyProbe{DB: st}, func() { _ = st.Close() }, nil
	}

	if cfg.Dev.Subject == "" {
		return nil, httpapi.ReadyProbe{}, nil, errors.New("DATABASE_URL is required (or VENTAS_DEV_SUBJECT for an in-memory store)")
	}
	subject, err := uuid.Parse(cfg.Dev.Subject)
	if err != nil {
		return nil, httpapi.ReadyProbe{}, nil, fmt.Errorf("VENTAS_DEV_SUBJECT: %w", err)
	}
	st := memory.New()
	demo := memory.SeedDemo(st, subject)
	obs.Logger().Warn().
		Int64("company_id", demo.Company.ID).
		Str("subject", subject.String()).
		Msg("no database configured, using seeded in-memory store")
	return st, httpapi.ReadyProbe{}, func() {}, nil
}

func newValidator(ctx context.Context, cfg config.IdentityConfig) (auth.TokenValidator, error) {
	switch cfg.Mode {
	case config.IdentityJWT:
		return identity.NewJWTValidator(cfg.JWTSecret, cfg.Audience)
	case config.IdentityOIDC:
		dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return identity.NewOIDCValidator(dctx, cfg.Issuer, cfg.Audience)
	default:
		return identity.NewRemoteValidator(cfg.ProviderURL, cfg.ServiceKey, identity.WithTimeout(cfg.Timeout))
	}
}
