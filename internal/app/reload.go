package app

import (
	"context"

	"tgwatch/internal/config"
	logx "tgwatch/pkg/logx"
)

// watchReloads applies hot-reloadable sections when the config file
// changes. Logging and the keyword set apply live; anything touching the
// Telegram session or the engine cadence is logged as restart-required.
func (a *App) watchReloads(ctx context.Context) {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyReload(prev, cfg)
			prev = cfg
		}
	}
}

func (a *App) applyReload(prev, cfg *config.Config) {
	changed, attrs := config.SummarizeChange(prev, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("applying config change", append(attrs, logx.Any("sections", changed))...)

	if config.Contains(changed, "logging") {
		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
	}

	if config.Contains(changed, "keywords") && len(cfg.Keywords) > 0 {
		a.kws.Set(cfg.Keywords)
	}

	for _, section := range changed {
		switch section {
		case "telegram", "monitor", "storage", "sinks", "digest":
			a.log.Warn("config section needs a restart to take effect",
				logx.String("section", section),
			)
		}
	}
}
