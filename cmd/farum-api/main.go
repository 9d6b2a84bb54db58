package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/farum-triage/internal/adapters/http"
	firestorestore "github.com/PabloGalante/farum-triage/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/farum-triage/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/farum-triage/internal/adapters/storage/redis"
	"github.com/PabloGalante/farum-triage/internal/adapters/storage/snapshot"
	sqlitestore "github.com/PabloGalante/farum-triage/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/feedback"
	"github.com/PabloGalante/farum-triage/internal/app/profiles"
	"github.com/PabloGalante/farum-triage/internal/config"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	observability.SetLogger(logger)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("farum api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing := observability.InitTracing(ctx, logger, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Version:     version,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics()

	tables, err := loadLexicon(cfg.LexiconPath)
	if err != nil {
		return err
	}
	holder := lexicon.NewHolder(tables)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(logger)

	ps := profiles.NewService(st.profiles, nil)
	svc := conversation.NewService(conversation.Deps{
		Lexicon:  holder,
		Sessions: st.sessions,
		Messages: st.messages,
		Profiles: ps,
		Global:   st.global,
		Metrics:  metrics,
	})
	fb := feedback.NewService(ps, st.global, holder, metrics, nil)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(svc, fb, metrics, st.checks...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("farum api listening", "port", cfg.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.LexiconWatch {
		w := lexicon.NewWatcher(cfg.LexiconPath, holder,
			lexicon.WithLogger(logger),
			lexicon.WithReloadHook(func(s lexicon.ReloadStatus) {
				metrics.ObserveLexiconReload(string(s))
			}),
		)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if st.memSessions != nil {
		g.Go(func() error {
			runJanitor(gctx, st.memSessions, cfg.SessionIdleTimeout, cfg.JanitorInterval, metrics, logger)
			return nil
		})
	}

	return g.Wait()
}

func loadLexicon(path string) (*lexicon.Tables, error) {
	if path == "" {
		return lexicon.Default()
	}
	return lexicon.LoadFile(path)
}

// runJanitor evicts idle in-memory sessions until ctx is done.
func runJanitor(ctx context.Context, sessions *memstore.SessionStore, idle, every time.Duration, m *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := sessions.EvictIdle(now.Add(-idle))
			m.ObserveEvictions(n)
			if n > 0 {
				logger.Debug("evicted idle sessions", "count", n, "remaining", sessions.Len())
			}
		}
	}
}

// ─────────────────────────────────────────────
// Storage wiring
// ─────────────────────────────────────────────

type stores struct {
	sessions domain.SessionStore
	messages domain.MessageStore
	profiles domain.ProfileStore
	global   domain.EffectivenessStore

	memSessions *memstore.SessionStore

	checks  []httpadapter.HealthCheck
	closers []func() error
}

func (s *stores) close(logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.SessionBackend {
	case config.SessionRedis:
		rs, err := redisstore.NewSessionStore(ctx, redisstore.Config{
			Address:     cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Prefix:      cfg.RedisPrefix,
			IdleTimeout: cfg.SessionIdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		logger.Info("[STORE] using redis sessions", "addr", cfg.RedisAddr)
		st.sessions = rs
		st.checks = append(st.checks, httpadapter.HealthCheck{Name: "redis", Check: rs.Ping})
		st.closers = append(st.closers, rs.Close)
	default:
		logger.Info("[STORE] using in-memory sessions")
		ms := memstore.NewSessionStore()
		st.sessions = ms
		st.memSessions = ms
	}

	switch cfg.StorageBackend {
	case config.StorageSQLite:
		db, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			st.close(logger)
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		logger.Info("[STORE] using sqlite storage", "path", cfg.SQLitePath)
		st.profiles, st.global, st.messages = db, db, db
		st.checks = append(st.checks, httpadapter.HealthCheck{Name: "sqlite", Check: db.Ping})
		st.closers = append(st.closers, db.Close)

	case config.StorageFirestore:
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			st.close(logger)
			return nil, fmt.Errorf("firestore store: %w", err)
		}
		logger.Info("[STORE] using firestore storage", "project", cfg.GCPProjectID)
		// 1 store, implements 3 interfaces
		st.profiles, st.global, st.messages = fs, fs, fs
		st.closers = append(st.closers, fs.Close)

	default:
		logger.Info("[STORE] using in-memory storage")
		mp := memstore.NewProfileStore()
		mg := memstore.NewEffectivenessStore()
		st.profiles, st.global = mp, mg
		st.messages = memstore.NewMessageStore()

		if cfg.SnapshotPath != "" {
			restored, err := snapshot.Load(cfg.SnapshotPath, mp, mg)
			if err != nil {
				st.close(logger)
				return nil, fmt.Errorf("restore snapshot: %w", err)
			}
			logger.Info("profile snapshot", "path", cfg.SnapshotPath, "restored", restored)

			path := cfg.SnapshotPath
			st.closers = append(st.closers, func() error {
				if err := snapshot.Save(path, mp, mg, time.Now()); err != nil {
					return fmt.Errorf("save snapshot: %w", err)
				}
				logger.Info("profile snapshot saved", "path", path)
				return nil
			})
		}
	}

	return st, nil
}
