package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/env"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/wacap"
)

// Routines schedules the periodic health poll that reconciles registry state
// with the live connection state of every client. whatsmeow exposes
// IsConnected/IsLoggedIn but emits no event when a session silently goes
// stale, so the poll keeps the registry honest between events.
func Routines(c *cron.Cron, backend *wacap.Wacap) {
	log.Print(nil).Info("Running Routine Tasks")

	if !env.GetEnvBoolOrDefault("WACAP_ENABLE_HEALTH_CHECK_CRON", true) {
		log.Print(nil).Info("Health check cron disabled; relying on collaborator event handlers")
		c.Start()
		return
	}

	spec := env.GetEnvStringOrDefault("WACAP_HEALTH_CHECK_CRON_SPEC", "0 */5 * * * *")
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		backend.SyncHealth(ctx)
	})
	if err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
	}

	c.Start()
}
