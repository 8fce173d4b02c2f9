package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"saltyrtc/internal/instrument"
)

// Background starts the metrics endpoint, when configured, and reopens the
// log file on SIGHUP. Both stop with ctx.
func (w *Wire) Background(ctx context.Context) {
	log := w.Logs.GetLogger("app")

	if addr := w.Config.Metrics.Address; addr != "" {
		errLog := w.Logs.GetGoLogger("metrics", "WARNING")
		go func() {
			log.Noticef("Serving metrics on %s", addr)
			if err := instrument.Serve(ctx, addr, errLog); err != nil {
				log.Errorf("Metrics endpoint: %v", err)
			}
		}()
	}

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hupCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hupCh:
				if err := w.Logs.Reopen(); err != nil {
					log.Errorf("Reopening log: %v", err)
				} else {
					log.Notice("Log reopened")
				}
			}
		}
	}()
}
