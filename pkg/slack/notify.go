package slack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goslack "github.com/slack-go/slack"
)

// NotifierConfig holds the parameters needed to construct a Notifier.
type NotifierConfig struct {
	Token     string
	ChannelID string
}

// dedupWindow is how long a notification fingerprint is remembered. A
// crisis session that re-triggers NotifyCrisisOpened within this window
// (e.g. a retried request after a transient pipeline error) must not
// page the channel twice for the same event.
const dedupWindow = 5 * time.Minute

// Notifier sends safety-critical pipeline events to an operator Slack
// channel. Nil-safe: every method is a no-op when the notifier is nil,
// so call sites never need a feature-flag check around it.
type Notifier struct {
	client *Client
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewNotifier creates a Notifier. Returns nil if Token or ChannelID is
// empty, so a deployment without Slack configured gets a silent no-op
// rather than a construction error.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil
	}
	return &Notifier{
		client: NewClient(cfg.Token, cfg.ChannelID),
		logger: slog.Default().With("component", "slack-notifier"),
		seen:   make(map[string]time.Time),
	}
}

// NewNotifierWithClient builds a Notifier over a pre-built Client.
// Useful for testing against a mock API server.
func NewNotifierWithClient(client *Client) *Notifier {
	return &Notifier{
		client: client,
		logger: slog.Default().With("component", "slack-notifier"),
		seen:   make(map[string]time.Time),
	}
}

// fingerprint returns a stable hash for a notification's identity. Two
// calls with the same parts within dedupWindow are treated as the same
// event.
func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// alreadySent reports whether fp was recorded within dedupWindow, and
// records it (with the current time) if not. It also opportunistically
// prunes expired entries so the map doesn't grow unbounded.
func (n *Notifier) alreadySent(fp string, now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for k, t := range n.seen {
		if now.Sub(t) > dedupWindow {
			delete(n.seen, k)
		}
	}

	if t, ok := n.seen[fp]; ok && now.Sub(t) <= dedupWindow {
		return true
	}
	n.seen[fp] = now
	return false
}

// NotifyCrisisOpened reports that a CrisisSession was opened for a
// user. Fail-open: delivery errors are logged, never returned — a
// Slack outage must never affect the pipeline's own safety behavior.
func (n *Notifier) NotifyCrisisOpened(ctx context.Context, userID, sessionID string) {
	if n == nil {
		return
	}
	if n.alreadySent(fingerprint("crisis-opened", userID, sessionID), time.Now()) {
		return
	}
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf(":rotating_light: Crisis session opened for user `%s` (session `%s`)", userID, sessionID), false, false),
			nil, nil,
		),
	}
	if err := n.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		n.logger.Error("failed to notify crisis opened", "user_id", userID, "error", err)
	}
}

// NotifyInvariantViolation reports a critical invariant violation that
// halted a response.
func (n *Notifier) NotifyInvariantViolation(ctx context.Context, userID, invariantName, detail string) {
	if n == nil {
		return
	}
	if n.alreadySent(fingerprint("invariant-violation", userID, invariantName, detail), time.Now()) {
		return
	}
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf(":warning: Critical invariant `%s` violated for user `%s`: %s", invariantName, userID, detail), false, false),
			nil, nil,
		),
	}
	if err := n.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		n.logger.Error("failed to notify invariant violation", "invariant", invariantName, "error", err)
	}
}
