package status

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-registry/internal/types"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/wacap"
)

// Controller exposes the session registry and the collaborator's pairing
// lifecycle over HTTP.
type Controller struct {
	registry *session.Registry
	backend  *wacap.Wacap
}

func NewController(registry *session.Registry, backend *wacap.Wacap) *Controller {
	return &Controller{registry: registry, backend: backend}
}

// ListSessions
// @Summary     List active sessions and their last-known statuses
// @Tags        Sessions
// @Produce     json
// @Router      /sessions [get]
func (ctl *Controller) ListSessions(c *fiber.Ctx) error {
	collaborator, err := ctl.registry.Collaborator()
	if err != nil {
		return router.ResponseServiceUnavailable(c, "Messaging collaborator is not initialized")
	}

	active, err := collaborator.ListSessions(c.Context())
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Successfully listed sessions", fiber.Map{
		"active":   active,
		"statuses": ctl.registry.ListStatuses(),
	})
}

// GetStatus
// @Summary     Get the last-known status of a session
// @Tags        Sessions
// @Produce     json
// @Router      /sessions/{session_id}/status [get]
func (ctl *Controller) GetStatus(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	record, ok := ctl.registry.GetStatus(sessionID)
	if !ok {
		return router.ResponseNotFound(c, "No status recorded for session")
	}
	return router.ResponseSuccessWithData(c, "Successfully fetched session status", record)
}

// RecordStatus
// @Summary     Merge a partial status update into a session record
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Router      /sessions/{session_id}/status [put]
func (ctl *Controller) RecordStatus(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if strings.TrimSpace(sessionID) == "" {
		return router.ResponseBadRequest(c, "Session id is required")
	}

	var req types.RequestStatusUpdate
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	state := session.State(req.State)
	if req.State != "" && !validState(state) {
		return router.ResponseBadRequest(c, "Unknown connection state: "+req.State)
	}

	record := ctl.registry.RecordStatus(sessionID, session.Update{
		State:  state,
		Fields: req.Fields,
	})
	return router.ResponseSuccessWithData(c, "Successfully recorded session status", record)
}

// RemoveStatus
// @Summary     Remove a session status record
// @Tags        Sessions
// @Produce     json
// @Router      /sessions/{session_id}/status [delete]
func (ctl *Controller) RemoveStatus(c *fiber.Ctx) error {
	ctl.registry.RemoveStatus(c.Params("session_id"))
	return router.ResponseSuccess(c, "Successfully removed session status")
}

// Login
// @Summary     Start QR pairing for a session
// @Tags        Sessions
// @Produce     json
// @Router      /sessions/{session_id}/login [post]
func (ctl *Controller) Login(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if strings.TrimSpace(sessionID) == "" {
		return router.ResponseBadRequest(c, "Session id is required")
	}

	qrImage, qrTimeout, err := ctl.backend.Login(c.Context(), sessionID)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	if qrImage == "" {
		return router.ResponseSuccess(c, "Session is already paired and reconnected")
	}

	return router.ResponseSuccessWithData(c, "Successfully generated QR code", fiber.Map{
		"qr_code":    qrImage,
		"qr_timeout": qrTimeout,
	})
}

// Logout
// @Summary     Unlink a session and remove its status record
// @Tags        Sessions
// @Produce     json
// @Router      /sessions/{session_id}/logout [post]
func (ctl *Controller) Logout(c *fiber.Ctx) error {
	err := ctl.backend.Logout(c.Context(), c.Params("session_id"))
	if err != nil {
		if errors.Is(err, wacap.ErrSessionNotFound) {
			return router.ResponseNotFound(c, "Session not found")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Successfully logged out session")
}

func validState(state session.State) bool {
	switch state {
	case session.StateConnecting, session.StateQRPending, session.StateConnected,
		session.StateDisconnected, session.StateError:
		return true
	}
	return false
}
