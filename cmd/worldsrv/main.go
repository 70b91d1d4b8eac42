package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/auth"
	"github.com/worldsrv/server/internal/config"
	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/handler"
	"github.com/worldsrv/server/internal/journal"
	"github.com/worldsrv/server/internal/loop"
	"github.com/worldsrv/server/internal/messaging"
	"github.com/worldsrv/server/internal/metric"
	gonet "github.com/worldsrv/server/internal/net"
	"github.com/worldsrv/server/internal/net/packet"
	"github.com/worldsrv/server/internal/persist"
	"github.com/worldsrv/server/internal/scripting"
	"github.com/worldsrv/server/internal/system"
	"github.com/worldsrv/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const authWorkers = 2

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// configPath picks the -config flag, then WORLDSRV_CONFIG, then the default.
func configPath() string {
	path := flag.String("config", "", "path to server.toml")
	flag.Parse()
	if *path != "" {
		return *path
	}
	if p := os.Getenv("WORLDSRV_CONFIG"); p != "" {
		return p
	}
	return "config/server.toml"
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	srv := newServer(cfg, log)
	if err := srv.loop.Init(); err != nil {
		return err
	}
	srv.registerSystems()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("server ready",
		zap.String("name", cfg.Server.Name),
		zap.String("run", srv.loop.RunID()),
		zap.Stringer("addr", srv.transport.Addr()),
		zap.Uint64("seed", cfg.Server.Seed),
		zap.Duration("tick", cfg.Server.TickRate),
	)
	return srv.loop.Run(ctx)
}

// server holds everything the stages acquire. Fields are filled in stage
// order and read by the stages after them.
type server struct {
	cfg     *config.Config
	log     *zap.Logger
	bus     *event.Bus
	metrics *metric.Metrics
	runner  *coresys.Runner
	loop    *loop.Loop

	scripts   *scripting.Engine
	behaviors *ai.Registry
	world     *world.World
	spawns    *world.SpawnMgr
	registry  *packet.Registry
	deps      *handler.Deps
	publisher *messaging.Publisher
	nats      *messaging.NatsServer
	db        *persist.DB
	authn     *auth.Authenticator
	saver     *persist.Saver
	journal   *journal.Writer
	metricSrv *metric.Server
	sessions  *gonet.SessionStore
	transport *gonet.Server
	persist   *system.PersistenceSystem
}

func newServer(cfg *config.Config, log *zap.Logger) *server {
	s := &server{
		cfg:      cfg,
		bus:      event.NewBus(),
		metrics:  metric.New(),
		runner:   coresys.NewRunner(),
		sessions: gonet.NewSessionStore(),
	}
	s.loop = loop.New(cfg.Server.TickRate, s.runner, s.bus, s.metrics, log)
	s.log = log.With(zap.String("run", s.loop.RunID()))
	s.deps = &handler.Deps{
		Config:   cfg,
		Log:      s.log,
		Bus:      s.bus,
		Sessions: system.Lookup(s.sessions),
	}

	for _, st := range []loop.Stage{
		{Name: "scripting", Init: s.initScripting, Cleanup: func() { s.scripts.Close() }},
		{Name: "world", Init: s.initWorld, Cleanup: func() { s.world.Shutdown() }},
		{Name: "registry", Init: s.initRegistry},
		{Name: "messaging", Init: s.initMessaging, Cleanup: s.closeMessaging},
		{Name: "persistence", Init: s.initPersistence, Cleanup: s.closePersistence},
		{Name: "journal", Init: s.initJournal, Cleanup: s.closeJournal},
		{Name: "metrics", Init: s.initMetrics, Cleanup: s.closeMetrics},
		{Name: "transport", Init: s.initTransport, Cleanup: s.closeTransport},
	} {
		// stages are added right after construction, AddStage cannot fail here
		_ = s.loop.AddStage(st)
	}
	return s
}

func (s *server) initScripting() error {
	scripts, err := scripting.NewEngine(s.cfg.AI.ScriptsDir, s.log)
	if err != nil {
		return err
	}
	shape, err := ai.ParsePerturbation(s.cfg.AI.Perturbation)
	if err != nil {
		scripts.Close()
		return err
	}
	s.scripts = scripts
	s.behaviors = ai.NewRegistry(shape, float32(s.cfg.AI.WanderRotation), scripts)
	s.log.Info("behaviors loaded", zap.Strings("names", s.behaviors.Names()))
	return nil
}

func (s *server) initWorld() error {
	w := world.New(s.cfg.World, s.cfg.Server.Seed, world.YAMLProvider{Path: s.cfg.World.MapFile}, s.bus, s.log)
	if err := w.Init(); err != nil {
		return err
	}
	spawns := world.NewSpawnMgr(w, s.behaviors, s.cfg.World.RespawnTicks, s.bus, s.log)
	if err := spawns.Populate(); err != nil {
		w.Shutdown()
		return err
	}
	s.world = w
	s.spawns = spawns
	s.deps.World = w
	return nil
}

func (s *server) initRegistry() error {
	s.registry = packet.NewRegistry(s.metrics, s.log)
	if err := handler.RegisterAll(s.registry, s.deps); err != nil {
		return err
	}
	s.registry.Freeze()
	handler.SubscribeBroadcasts(s.deps)
	return nil
}

func (s *server) initMessaging() error {
	mc := s.cfg.Messaging
	if !mc.Enabled {
		return nil
	}
	url := mc.URL
	if mc.Embedded {
		ns, err := messaging.NewNatsServer(
			messaging.WithHost(mc.Host),
			messaging.WithPort(mc.Port),
			messaging.WithStartTimeout(mc.StartTimeout),
		)
		if err != nil {
			return err
		}
		if err := ns.Start(); err != nil {
			return err
		}
		s.nats = ns
		url = ns.ClientURL()
	}
	pub, err := messaging.Connect(url, mc.SubjectPrefix, s.loop.RunID(), s.log)
	if err != nil {
		if s.nats != nil {
			s.nats.Shutdown()
			s.nats = nil
		}
		return err
	}
	pub.Attach(s.bus)
	s.publisher = pub
	return nil
}

func (s *server) closeMessaging() {
	if s.publisher != nil {
		if err := s.publisher.Flush(2 * time.Second); err != nil {
			s.log.Warn("nats flush failed", zap.Error(err))
		}
		s.publisher.Close()
	}
	if s.nats != nil {
		s.nats.Shutdown()
	}
}

func (s *server) initPersistence() error {
	var (
		accounts auth.Store
		players  persist.PlayerSaver
	)
	if s.cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, s.cfg.Database, s.log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if _, err := persist.RunMigrations(ctx, db.Pool, s.log); err != nil {
			db.Close()
			return fmt.Errorf("migrations: %w", err)
		}
		s.db = db
		store := persist.NewStore(db)
		accounts, players = store, store
	} else {
		s.log.Warn("database disabled, accounts and players live in memory")
		mem := auth.NewMemoryStore()
		accounts, players = mem, mem
	}

	s.authn = auth.NewAuthenticator(accounts, s.cfg.Server.AutoRegister, s.log)
	s.authn.Start(authWorkers)
	s.deps.Auth = s.authn

	s.saver = persist.NewSaver(players, s.log)
	s.saver.Start()
	s.persist = system.NewPersistenceSystem(s.world.Entities(), s.saver, s.loop.Ticks, s.cfg.Database.SaveInterval, s.log)
	s.deps.SaveOnLeave = s.persist.Enqueue
	return nil
}

func (s *server) closePersistence() {
	// transport is already down; nobody can join or leave any more
	s.persist.SaveAll()
	s.authn.Stop()
	s.saver.Stop()
	if s.db != nil {
		s.db.Close()
	}
}

func (s *server) initJournal() error {
	if !s.cfg.Journal.Enabled {
		return nil
	}
	jw, err := journal.Create(s.cfg.Journal.Dir, s.loop.RunID(), s.log)
	if err != nil {
		return err
	}
	s.journal = jw
	return nil
}

func (s *server) closeJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.log.Error("journal close failed", zap.Error(err), zap.Uint64("dropped", s.journal.Dropped()))
	}
}

func (s *server) initMetrics() error {
	if s.cfg.Metrics.Address == "" {
		return nil
	}
	srv := metric.NewServer(s.cfg.Metrics.Address, s.metrics, s.log)
	if err := srv.Start(); err != nil {
		return err
	}
	s.metricSrv = srv
	return nil
}

func (s *server) closeMetrics() {
	if s.metricSrv != nil {
		s.metricSrv.Shutdown()
	}
}

func (s *server) initTransport() error {
	nc := s.cfg.Network
	srv, err := gonet.NewServer(s.cfg.Server.Addr(), nc.WebSocketAddress, s.cfg.Server.MaxClients, gonet.SessionOptions{
		InQueueSize:      nc.InQueueSize,
		OutQueueSize:     nc.OutQueueSize,
		PacketsPerSecond: nc.PacketsPerSecond,
		WriteTimeout:     nc.WriteTimeout,
	}, s.metrics, s.log)
	if err != nil {
		return err
	}
	srv.Start()
	s.transport = srv
	return nil
}

func (s *server) closeTransport() {
	s.transport.Shutdown()
	s.sessions.Each(func(sess *gonet.Session) {
		sess.FlushOutput()
		sess.Close()
	})
}

// registerSystems wires the tick phases once every stage is up.
func (s *server) registerSystems() {
	var sink system.Journal
	if s.journal != nil {
		sink = s.journal
	}
	store := s.world.Entities()

	s.runner.Register(system.NewInputSystem(s.transport, s.sessions, s.registry, s.deps, s.authn, sink,
		s.loop.Ticks, s.cfg.Network.MaxPacketsPerTick, s.log))
	s.runner.Register(system.NewLifecycleSystem(store, s.spawns))
	s.runner.Register(system.NewWorldSystem(s.world))
	s.runner.Register(system.NewTimeoutSystem(s.sessions, s.cfg.Server.UserTimeout, s.log))
	s.runner.Register(system.NewEventSystem(s.bus))
	s.runner.Register(system.NewOutputSystem(s.sessions))
	s.runner.Register(s.persist)
	s.runner.Register(system.NewCleanupSystem(store, s.bus))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
