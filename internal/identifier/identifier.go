package identifier

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-registry/internal/types"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/jid"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/router"
)

// Normalize
// @Summary     Normalize a raw identifier into canonical form
// @Tags        Identifiers
// @Accept      json
// @Produce     json
// @Router      /identifiers/normalize [post]
func Normalize(c *fiber.Ctx) error {
	var req types.RequestNormalize
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	canonical, err := jid.Normalize(req.Identifier)
	if err != nil {
		var invalid *jid.InvalidIdentifierError
		if errors.As(err, &invalid) {
			return router.ResponseBadRequest(c, "Invalid identifier: "+string(invalid.Reason))
		}
		return router.ResponseBadRequest(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Successfully normalized identifier", fiber.Map{
		"identifier": canonical,
		"kind":       jid.Classify(canonical),
		"local_part": jid.LocalPart(canonical),
	})
}

// Classify
// @Summary     Classify an identifier by its suffix
// @Tags        Identifiers
// @Produce     json
// @Router      /identifiers/{identifier}/classify [get]
func Classify(c *fiber.Ctx) error {
	id, err := decodeIdentifierParam(c)
	if err != nil {
		return router.ResponseBadRequest(c, "Identifier is required")
	}

	return router.ResponseSuccessWithData(c, "Successfully classified identifier", fiber.Map{
		"identifier":  id,
		"kind":        jid.Classify(id),
		"addressable": jid.IsAddressable(id),
		"local_part":  jid.LocalPart(id),
	})
}

// Format
// @Summary     Format a phone number or identifier for display
// @Tags        Identifiers
// @Accept      json
// @Produce     json
// @Router      /identifiers/format [post]
func Format(c *fiber.Ctx) error {
	var req types.RequestFormat
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}

	return router.ResponseSuccessWithData(c, "Successfully formatted identifier", fiber.Map{
		"identifier": req.Identifier,
		"display":    jid.FormatForDisplay(req.Identifier),
	})
}

func decodeIdentifierParam(c *fiber.Ctx) (string, error) {
	id, err := url.PathUnescape(c.Params("identifier"))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", errors.New("identifier is required")
	}
	return id, nil
}
