package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/board"
	"github.com/MrSnakeDoc/ledctl/internal/config"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
	"github.com/MrSnakeDoc/ledctl/internal/ninefs"
	"github.com/MrSnakeDoc/ledctl/internal/redis"
	"github.com/MrSnakeDoc/ledctl/internal/scheduler"
	"github.com/MrSnakeDoc/ledctl/internal/sources/actuators"
	redisstore "github.com/MrSnakeDoc/ledctl/internal/store/redis"
	"github.com/MrSnakeDoc/ledctl/internal/utils"
	"github.com/MrSnakeDoc/ledctl/internal/version"
)

const defaultActuatorName = "led"

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	board       board.Board
	bank        *actuator.Bank
	server      *httpserver.Server
	redisClient *goredis.Client
	journal     *journal.Journal
	heartbeat   *scheduler.Heartbeat
	nine        *ninefs.Server
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	ctx := context.Background()

	b, err := board.Init(ctx, cfg, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("board bring-up: %w", err)
	}
	loggerClient.Info("board ready", logger.String("board", b.Name()))

	return build(ctx, cfg, loggerClient, b)
}

// build assembles the service on a board that is already up. On failure
// everything opened so far is closed again, the board included.
func build(ctx context.Context, cfg *config.Config, loggerClient logger.Logger, b board.Board) (_ *App, err error) {
	defer func() {
		if err != nil {
			utils.CloseLogged(b, loggerClient, "board")
		}
	}()

	bank, err := buildBank(cfg, b, loggerClient)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			utils.CloseLogged(bank, loggerClient, "actuator bank")
		}
	}()

	// Toggle journal (optional) - fail fast if configured but unreachable
	var (
		redisClient *goredis.Client
		store       *redisstore.Store
		j           *journal.Journal
	)
	if cfg.JournalEnabled() {
		redisClient, err = redis.New(ctx, redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			return nil, fmt.Errorf("toggle journal: %w", err)
		}
		defer func() {
			if err != nil {
				utils.CloseLogged(redisClient, loggerClient, "redis")
			}
		}()
		store = redisstore.NewStore(redisClient)
		j = journal.New(store, loggerClient, cfg.JournalBuffer, cfg.RedisWT)
		loggerClient.Info("toggle journal enabled",
			logger.String("redis", cfg.RedisAddr),
			logger.Int("buffer", cfg.JournalBuffer))
	} else {
		loggerClient.Info("redis address not configured, toggle journal disabled")
	}

	var hb *scheduler.Heartbeat
	if cfg.HeartbeatInterval > 0 {
		hb = scheduler.NewHeartbeat(b.HeartbeatOutput(), loggerClient, cfg.HeartbeatInterval)
	}

	var nine *ninefs.Server
	if cfg.NinePAddr != "" {
		ns, nsErr := ninefs.NewStatus(bank, version.Version)
		if nsErr != nil {
			return nil, fmt.Errorf("9P status tree: %w", nsErr)
		}
		nine = ninefs.NewServer(ns, loggerClient)
	}

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		Board:        b.Name(),
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Bank:         bank,
		Journal:      j,
		Store:        store,
		Ready:        new(atomic.Bool),
	}

	server, err := httpserver.New(cfg, loggerClient, d)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		board:       b,
		bank:        bank,
		server:      server,
		redisClient: redisClient,
		journal:     j,
		heartbeat:   hb,
		nine:        nine,
	}, nil
}

// buildBank creates the default actuator plus whatever the actuator file
// defines, each backed by a board output.
func buildBank(cfg *config.Config, b board.Board, log logger.Logger) (*actuator.Bank, error) {
	out, err := b.Output(defaultActuatorName, cfg.InitialLED)
	if err != nil {
		return nil, fmt.Errorf("default actuator: %w", err)
	}
	def := actuator.Actuator{Name: defaultActuatorName, Output: out}

	var extra []actuator.Actuator
	if cfg.ActuatorFile != "" {
		file, err := actuators.NewLoader(cfg.ActuatorFile).Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load actuators: %w", err)
		}

		var outputErr error
		mapper := actuators.NewMapper(func(name string, initial bool) actuator.Output {
			o, err := b.Output(name, initial)
			if err != nil && outputErr == nil {
				outputErr = err
			}
			return o
		})
		extra, err = mapper.Map(file)
		if err != nil {
			return nil, fmt.Errorf("invalid actuator file %s: %w", cfg.ActuatorFile, err)
		}
		if outputErr != nil {
			return nil, fmt.Errorf("actuator outputs: %w", outputErr)
		}
		log.Info("actuators loaded",
			logger.String("file", cfg.ActuatorFile),
			logger.Int("count", len(extra)))
	}

	bank, err := actuator.NewBank(actuator.Regime(cfg.StateRegime), def, extra...)
	if err != nil {
		return nil, fmt.Errorf("actuator bank: %w", err)
	}
	return bank, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting ledctl v%s on %s (%s)", version.Version, a.cfg.ListenAddr, a.board.Name())
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.journal != nil {
		if err := a.journal.Start(ctx); err != nil {
			return fmt.Errorf("failed to start toggle journal: %w", err)
		}
	}

	if a.heartbeat != nil {
		if err := a.heartbeat.Start(ctx); err != nil {
			return fmt.Errorf("failed to start heartbeat: %w", err)
		}
		a.logger.Info("heartbeat started",
			logger.Duration("interval", a.cfg.HeartbeatInterval))
	}

	ln, err := a.board.Listen(ctx, a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("http listener: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.server.Serve(ln); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if a.nine != nil {
		nineLn, err := a.board.Listen(ctx, a.cfg.NinePAddr)
		if err != nil {
			errCh <- fmt.Errorf("9P listener: %w", err)
		} else {
			go func(l net.Listener) {
				if err := a.nine.Serve(l); err != nil {
					errCh <- fmt.Errorf("9P server error: %w", err)
				}
			}(nineLn)
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("server failed, shutting down", logger.Error(runErr))
	}

	a.shutdown()
	return runErr
}

// shutdown stops everything in reverse start order.
func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("http server did not stop cleanly", logger.Error(err))
	}

	if a.nine != nil {
		if err := a.nine.Stop(shutdownCtx); err != nil {
			a.logger.Warn("9P server did not stop cleanly", logger.Error(err))
		}
	}

	if a.heartbeat != nil {
		a.heartbeat.Stop()
	}

	if a.journal != nil {
		if err := a.journal.Stop(); err != nil {
			a.logger.Warn("toggle journal did not stop cleanly", logger.Error(err))
		}
		stats := a.journal.Stats()
		a.logger.Info("toggle journal flushed",
			logger.Int("written", int(stats.Written)),
			logger.Int("dropped", int(stats.Dropped)))
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	utils.CloseLogged(a.bank, a.logger, "actuator bank")
	utils.CloseLogged(a.board, a.logger, "board")

	a.logger.Info("✅ ledctl stopped cleanly")
	_ = a.logger.Sync()
}
