// Package app assembles the process: config, logging, storage, the
// Telegram adapter, the polling engine, the operator surface, and the
// scheduled digest.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"tgwatch/internal/adapters/telegram"
	"tgwatch/internal/config"
	"tgwatch/internal/control"
	"tgwatch/internal/digest"
	"tgwatch/internal/monitor"
	"tgwatch/internal/sink"
	"tgwatch/internal/storage"
	kit "tgwatch/internal/transport"
	"tgwatch/internal/watch"
	logx "tgwatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	cp      *storeCheckpoint
	adapter *telegram.Adapter

	reg    *watch.Registry
	kws    *watch.Keywords
	engine *monitor.Engine
	ctrl   *control.Service
	dig    *digest.Service

	fileSink *sink.File

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("INFO")

	cfgm := config.NewManager(cfgPath, bootLog)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		InboxSize:   cfg.Telegram.InboxSize,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	// Storage (optional).
	var store storage.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(sc, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		if store != nil {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}
	cp := &storeCheckpoint{store: store}

	// Watch domain.
	grace, err := config.ParseDurationField("monitor.watermark_grace", cfg.Monitor.WatermarkGrace)
	if err != nil {
		return nil, err
	}
	reg := watch.NewRegistry(watch.RegistryConfig{
		MaxChats: cfg.Monitor.MaxChats,
		Grace:    grace,
	}, adapter, cp, logSvc.Logger().With(logx.String("comp", "registry")))
	kws := watch.NewKeywords(cp, logSvc.Logger().With(logx.String("comp", "keywords")))

	// Sinks in fixed registration order: console, file, store, notify.
	var sinks []sink.Sink
	var fileSink *sink.File
	if cfg.Sinks.ConsoleEnabled() {
		sinks = append(sinks, sink.NewConsole(os.Stdout))
	}
	if cfg.Sinks.File != "" {
		fs, err := sink.NewFile(cfg.Sinks.File)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		fileSink = fs
		sinks = append(sinks, fileSink)
	}
	if store != nil {
		sinks = append(sinks, sink.NewStore(store))
	}
	targets := make([]kit.ChatTarget, 0, len(cfg.Telegram.NotifyChatIDs))
	for _, id := range cfg.Telegram.NotifyChatIDs {
		targets = append(targets, kit.ChatTarget{ChatID: id})
	}
	if len(targets) > 0 {
		sinks = append(sinks, sink.NewNotify(adapter, targets...))
	}
	disp := sink.NewDispatcher(logSvc.Logger().With(logx.String("comp", "sink")), sinks...)

	// Polling engine.
	mcfg, err := mapMonitorConfig(&cfg.Monitor)
	if err != nil {
		return nil, err
	}
	engine := monitor.New(mcfg, adapter, reg, kws, disp, logSvc.Logger().With(logx.String("comp", "monitor")))

	// Operator surface.
	ctrl := control.New(control.Config{
		AdminIDs: cfg.Telegram.AdminUserIDs,
		Password: cfg.Telegram.Password,
	}, control.Deps{
		Adapter:  adapter,
		Registry: reg,
		Keywords: kws,
		Engine:   engine,
		Store:    store,
	}, logSvc.Logger())

	dig := digest.New(digest.Config{
		Enabled:  cfg.Digest.Enabled,
		Spec:     cfg.Digest.Spec,
		Timezone: cfg.Digest.Timezone,
		ChatID:   cfg.Digest.ChatID,
	}, adapter, engine, store, logSvc.Logger())

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		cp:       cp,
		adapter:  adapter,
		reg:      reg,
		kws:      kws,
		engine:   engine,
		ctrl:     ctrl,
		dig:      dig,
		fileSink: fileSink,
		updates:  make(chan kit.Update, 256),
	}, nil
}

// Start brings every component up. It returns once the polling engine and
// the operator surface are running; ctx cancellation is observed by the
// background goroutines, not by Start itself.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.hydrate(runCtx); err != nil {
		cancel()
		return err
	}

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("telegram adapter: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.ctrl.Run(runCtx, a.updates)
	}()

	a.seedFromConfig(runCtx)

	a.engine.Start(runCtx)

	if err := a.dig.Start(runCtx); err != nil {
		a.log.Warn("digest not started", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchReloads(runCtx)
	}()

	a.log.Info("started",
		logx.Int("chats", a.reg.Len()),
		logx.Int("keywords", a.kws.Len()),
	)
	return nil
}

// Stop shuts components down in reverse dependency order.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	a.engine.Stop(ctx)
	a.dig.Stop()
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	a.wg.Wait()

	if a.fileSink != nil {
		_ = a.fileSink.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

// hydrate restores persisted watch state. The config file's keyword/chat
// seeds only apply when the store holds nothing.
func (a *App) hydrate(ctx context.Context) error {
	chats, err := a.cp.LoadChats(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	if len(chats) > 0 {
		a.reg.Hydrate(chats)
	}

	words, err := a.cp.LoadKeywords(ctx)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	if len(words) > 0 {
		a.kws.Hydrate(words)
	} else if seed := a.cfgm.Get().Keywords; len(seed) > 0 {
		a.kws.Set(seed)
	}
	return nil
}

// seedFromConfig adds configured chat links that are not yet monitored.
// Resolution needs the live adapter, so this runs after adapter start.
func (a *App) seedFromConfig(ctx context.Context) {
	if a.reg.Len() > 0 {
		return
	}
	for _, link := range a.cfgm.Get().Chats {
		if _, err := a.reg.Add(ctx, link); err != nil {
			a.log.Warn("seed chat skipped",
				logx.String("link", link),
				logx.Err(err),
			)
		}
	}
}

func mapStorageConfig(sc *config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	retention, err := config.ParseDurationField("storage.retention", sc.Retention)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
		Retention:   retention,
	}, nil
}

func mapMonitorConfig(mc *config.MonitorConfig) (monitor.Config, error) {
	interval, err := config.ParseDurationField("monitor.interval", mc.Interval)
	if err != nil {
		return monitor.Config{}, err
	}
	pause, err := config.ParseDurationField("monitor.chat_pause", mc.ChatPause)
	if err != nil {
		return monitor.Config{}, err
	}
	cooldown, err := config.ParseDurationField("monitor.error_cooldown", mc.ErrorCooldown)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Interval:      interval,
		ChatPause:     pause,
		PageSize:      mc.PageSize,
		ErrorCooldown: cooldown,
		RatePerMin:    mc.RatePerMin,
	}, nil
}
