package bot

import (
	"fmt"
	"log/slog"
)

// Service is a background component tied to the session's lifetime, such as
// the pending message sweep or the health endpoint.
type Service interface {
	Start() error
	Close() error
}

// startServices starts services in registration order. If one fails, the
// ones already running are closed again.
func (b *Bot) startServices() error {
	for i, s := range b.services {
		if err := s.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = b.services[j].Close()
			}
			return fmt.Errorf("start service %T: %w", s, err)
		}
	}
	slog.Info("background services started", "count", len(b.services))
	return nil
}

// stopServices closes services in reverse order.
func (b *Bot) stopServices() {
	for i := len(b.services) - 1; i >= 0; i-- {
		s := b.services[i]
		if err := s.Close(); err != nil {
			slog.Warn("error stopping service", "service", fmt.Sprintf("%T", s), "error", err)
		}
	}
}
