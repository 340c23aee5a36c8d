package internal

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/wacap"

	ctlIdentifier "github.com/gdbrns/go-whatsapp-session-registry/internal/identifier"
	ctlIndex "github.com/gdbrns/go-whatsapp-session-registry/internal/index"
	ctlRealtime "github.com/gdbrns/go-whatsapp-session-registry/internal/realtime"
	ctlStatus "github.com/gdbrns/go-whatsapp-session-registry/internal/status"
)

func Routes(app *fiber.App, registry *session.Registry, backend *wacap.Wacap, engine *ctlRealtime.Engine) {
	indexCtl := ctlIndex.NewController(registry, backend)
	statusCtl := ctlStatus.NewController(registry, backend)
	realtimeCtl := ctlRealtime.NewController(engine)

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}
	app.Get(router.BaseURL+"/health", indexCtl.Health)

	// Identifier engine (pure, synchronous)
	// ---------------------------------------------
	app.Post(router.BaseURL+"/identifiers/normalize", ctlIdentifier.Normalize)
	app.Get(router.BaseURL+"/identifiers/:identifier/classify", ctlIdentifier.Classify)
	app.Post(router.BaseURL+"/identifiers/format", ctlIdentifier.Format)

	// Session registry
	// ---------------------------------------------
	app.Get(router.BaseURL+"/sessions", statusCtl.ListSessions)
	app.Get(router.BaseURL+"/sessions/:session_id/status", statusCtl.GetStatus)
	app.Put(router.BaseURL+"/sessions/:session_id/status", statusCtl.RecordStatus)
	app.Delete(router.BaseURL+"/sessions/:session_id/status", statusCtl.RemoveStatus)
	app.Post(router.BaseURL+"/sessions/:session_id/login", statusCtl.Login)
	app.Post(router.BaseURL+"/sessions/:session_id/logout", statusCtl.Logout)

	// Realtime status subscribers
	// ---------------------------------------------
	app.Post(router.BaseURL+"/realtime/subscribers", realtimeCtl.CreateSubscriber)
	app.Get(router.BaseURL+"/realtime/subscribers", realtimeCtl.ListSubscribers)
	app.Delete(router.BaseURL+"/realtime/subscribers/:subscriber_id", realtimeCtl.DeleteSubscriber)
}
