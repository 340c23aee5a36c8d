package index

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/wacap"
)

// Index
// @Summary     Show The Status of The Server
// @Tags        Root
// @Produce     json
// @Router      / [get]
func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "WhatsApp Session Registry is running")
}

// Controller serves the health endpoint against the live registry.
type Controller struct {
	registry *session.Registry
	backend  *wacap.Wacap
}

func NewController(registry *session.Registry, backend *wacap.Wacap) *Controller {
	return &Controller{registry: registry, backend: backend}
}

// Health
// @Summary     Liveness of the collaborator and its storage
// @Tags        Root
// @Produce     json
// @Router      /health [get]
func (ctl *Controller) Health(c *fiber.Ctx) error {
	collaborator, err := ctl.registry.Collaborator()
	if err != nil {
		return router.ResponseServiceUnavailable(c, "Messaging collaborator is not initialized")
	}

	sessions, err := collaborator.ListSessions(c.Context())
	if err != nil {
		return router.ResponseServiceUnavailable(c, "Failed to enumerate sessions: "+err.Error())
	}

	if err := ctl.backend.Ping(c.Context()); err != nil {
		return router.ResponseServiceUnavailable(c, "Session storage is unreachable: "+err.Error())
	}

	return router.ResponseSuccessWithData(c, "Healthy", fiber.Map{
		"sessions": len(sessions),
		"storage":  "ok",
	})
}
