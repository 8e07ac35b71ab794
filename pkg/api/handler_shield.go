package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/lensguard/gatekeeper/pkg/errtaxonomy"
)

// ackHandler handles POST /api/v1/ack: out-of-band redemption of a
// token issued by an await_ack pipeline outcome. It consumes the token
// and reports whether redemption succeeded; it does not mark any later
// chatHandler call as acknowledged. A token redeemed here is spent, so
// presenting it on a chat request afterwards does not set
// AckTokenValid — only chatHandler's own redemption (redeemAckToken)
// does. Acknowledgment is never inferred from message content.
func (s *Server) ackHandler(c *echo.Context) error {
	var req AckRequest
	if err := c.Bind(&req); err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InvalidInput, "malformed request body", err))
	}
	if req.AckToken == "" || req.UserID == "" || req.Message == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "userId, message, and ackToken are required"))
	}

	redeemed, err := s.shieldEngine.RedeemAckToken(c.Request().Context(), req.AckToken, req.UserID, req.Message)
	if err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "ack redemption failed", err))
	}
	return c.JSON(http.StatusOK, AckResponse{Redeemed: redeemed})
}

// resolveCrisisHandler handles POST /api/v1/crisis/:userId/resolve: the
// out-of-band channel (e.g. a human responder confirming safety) that
// closes an open CrisisSession. This is never reachable from a chat
// message — crisis sessions can only be closed by an explicit call here.
func (s *Server) resolveCrisisHandler(c *echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "userId is required"))
	}
	if err := s.shieldEngine.ResolveCrisis(c.Request().Context(), userID); err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "crisis resolution failed", err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"resolved": true})
}
