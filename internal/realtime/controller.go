package realtime

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-registry/internal/types"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
)

// Controller exposes subscriber management over HTTP.
type Controller struct {
	engine *Engine
}

func NewController(engine *Engine) *Controller {
	return &Controller{engine: engine}
}

func (ctl *Controller) CreateSubscriber(c *fiber.Ctx) error {
	var req types.RequestSubscribe
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.URL) == "" {
		return router.ResponseBadRequest(c, "Callback URL is required")
	}

	subscriber, err := ctl.engine.Subscribe(req.URL, req.Secret, req.Events)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	return router.ResponseCreatedWithData(c, "Successfully registered realtime subscriber", subscriber)
}

func (ctl *Controller) ListSubscribers(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Successfully listed realtime subscribers", ctl.engine.ListSubscribers())
}

func (ctl *Controller) DeleteSubscriber(c *fiber.Ctx) error {
	id := c.Params("subscriber_id")
	if err := ctl.engine.Unsubscribe(id); err != nil {
		if errors.Is(err, ErrSubscriberNotFound) {
			return router.ResponseNotFound(c, "Realtime subscriber not found")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Successfully removed realtime subscriber")
}
