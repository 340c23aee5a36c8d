package internal

import (
	"context"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
)

// Startup installs the collaborator handle into the registry and restores
// stored sessions. SetCollaborator is first-install-wins, so a racing second
// boot path cannot replace a live handle.
func Startup(ctx context.Context, registry *session.Registry, backend session.Collaborator) {
	log.Print(nil).Info("Running Startup Tasks")

	installed := registry.SetCollaborator(backend)
	if installed != backend {
		log.Print(nil).Warn("Collaborator already installed, keeping existing handle")
		return
	}

	if err := installed.Init(ctx); err != nil {
		log.Print(nil).WithError(err).Error("Failed to restore stored sessions")
		return
	}

	sessions, err := installed.ListSessions(ctx)
	if err != nil {
		log.Print(nil).WithError(err).Error("Failed to enumerate restored sessions")
		return
	}
	log.Print(nil).WithField("sessions", len(sessions)).Info("Startup restore pass complete")
}
