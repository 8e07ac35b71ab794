package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/lensguard/gatekeeper/pkg/errtaxonomy"
	"github.com/lensguard/gatekeeper/pkg/events"
	"github.com/lensguard/gatekeeper/pkg/pipeline"
	"github.com/lensguard/gatekeeper/pkg/ratelimit"
)

// tierFor returns the rate-limit tier for a resolved caller
// identity. Any identity other than "anonymous" is treated as
// authenticated — the rate limiter itself is identity-agnostic; it is
// this boundary that decides which tier's limits apply.
func (s *Server) tierFor(userID string) ratelimit.Tier {
	if userID == "anonymous" {
		return ratelimit.AnonymousTier
	}
	rl := s.cfg.RateLimit
	return ratelimit.Tier{
		Name:       "authenticated",
		WindowMs:   rl.AuthenticatedWindowMs,
		MaxTokens:  float64(rl.AuthenticatedMaxTokens),
		RefillRate: float64(rl.AuthenticatedMaxTokens) / (float64(rl.AuthenticatedWindowMs) / 1000.0),
	}
}

func (s *Server) checkRateLimit(c *echo.Context, userID string) error {
	decision, err := s.limiter.Check(c.Request().Context(), "chat", userID, s.tierFor(userID))
	if err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "rate limit check failed", err))
	}
	if !decision.Allowed {
		c.Response().Header().Set("Retry-After-Ms", strconv.FormatInt(decision.RetryAfterMs, 10))
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.RateLimited, "too many requests"))
	}
	return nil
}

func toExecutorRequest(userID string, req ChatRequest) pipeline.Request {
	return pipeline.Request{
		UserID:                  userID,
		Message:                 req.Message,
		AckTokenValid:           false,
		AckToken:                req.AckToken,
		HasActivePracticeDrill:  req.HasActivePracticeDrill,
		HasActiveExploreSession: req.HasActiveExploreSession,
		LiveDataEntity:          req.LiveDataEntity,
	}
}

// redeemAckToken is the only path by which AckTokenValid may become true:
// an ack token presented on a chat request must actually be redeemed
// against the shield engine for this (userID, message) before the
// pipeline ever sees it as acknowledged. A non-empty token string on its
// own proves nothing — spec §4.3 requires the explicit out-of-band
// redemption, not an inference from request shape.
func (s *Server) redeemAckToken(c *echo.Context, userID, message, ackToken string) (bool, error) {
	if ackToken == "" {
		return false, nil
	}
	redeemed, err := s.shieldEngine.RedeemAckToken(c.Request().Context(), ackToken, userID, message)
	if err != nil {
		return false, mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "ack redemption failed", err))
	}
	return redeemed, nil
}

func toChatResponse(o pipeline.Outcome) ChatResponse {
	resp := ChatResponse{
		Kind:              string(o.Kind),
		Text:              o.Text,
		Stance:            string(o.Stance),
		Metadata:          o.Metadata,
		DegradationReason: o.DegradationReason,
		ErrorMessage:      o.ErrorMessage,
		AckToken:          o.AckToken,
		AckMessage:        o.AckMessage,
		RedirectTarget:    o.RedirectTarget,
		RedirectMode:      string(o.RedirectMode),
		RedirectPlanID:    o.RedirectPlanID,
		RedirectTopic:     o.RedirectTopic,
	}
	if o.Spark != nil {
		resp.Spark = &SparkResponse{Action: o.Spark.Action, FrictionLevel: string(o.Spark.FrictionLevel)}
	}
	return resp
}

// chatHandler handles POST /api/v1/chat: runs the full pipeline and
// returns the discriminated result envelope as a single JSON response.
func (s *Server) chatHandler(c *echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InvalidInput, "malformed request body", err))
	}
	if req.Message == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "message is required"))
	}

	userID := resolveUserID(c, req.UserID)
	if err := s.checkRateLimit(c, userID); err != nil {
		return err
	}

	ackValid, err := s.redeemAckToken(c, userID, req.Message, req.AckToken)
	if err != nil {
		return err
	}

	execReq := toExecutorRequest(userID, req)
	execReq.AckTokenValid = ackValid

	outcome := s.executor.Execute(c.Request().Context(), execReq)
	return c.JSON(http.StatusOK, toChatResponse(outcome))
}

// chatStreamHandler handles POST /api/v1/chat/stream. Per spec §6.4,
// the full non-streamed pipeline always runs first — this handler
// never streams raw, unvalidated model tokens — and the resulting text
// is then replayed to the client as a sequence of token events so the
// transport still gets an incremental, typing-effect experience.
func (s *Server) chatStreamHandler(c *echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InvalidInput, "malformed request body", err))
	}
	if req.Message == "" {
		return mapTaxonomyError(errtaxonomy.New(errtaxonomy.ValidationError, "message is required"))
	}

	userID := resolveUserID(c, req.UserID)
	if err := s.checkRateLimit(c, userID); err != nil {
		return err
	}

	ackValid, err := s.redeemAckToken(c, userID, req.Message, req.AckToken)
	if err != nil {
		return err
	}

	execReq := toExecutorRequest(userID, req)
	execReq.AckTokenValid = ackValid
	outcome := s.executor.Execute(c.Request().Context(), execReq)

	writer, err := events.NewWriter(c.Response())
	if err != nil {
		return mapTaxonomyError(errtaxonomy.Wrap(errtaxonomy.InternalError, "streaming not supported", err))
	}

	conversationID := userID
	if sendErr := writer.SendMeta(conversationID, string(outcome.Stance)); sendErr != nil {
		return nil
	}

	if outcome.Kind == pipeline.KindError {
		writer.SendError(outcome.ErrorMessage, "INTERNAL_ERROR")
		return nil
	}

	for _, chunk := range chunkText(outcome.Text) {
		if sendErr := writer.SendToken(chunk); sendErr != nil {
			return nil
		}
	}

	tokensUsed := 0
	model := ""
	if m, ok := outcome.Metadata["model"].(string); ok {
		model = m
	}
	_ = writer.SendDone(conversationID, string(outcome.Stance), tokensUsed, model)
	return nil
}

// chunkText splits text into word-boundary chunks for incremental
// delivery. Words are packed into a chunk until adding the next one
// would exceed the target size, so a typing-effect replay never
// splits a word across two token events.
func chunkText(text string) []string {
	const targetSize = 24
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	var chunks []string
	var b strings.Builder
	for _, word := range fields {
		if b.Len() > 0 && b.Len()+1+len(word) > targetSize {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
