// Package moderoute implements the simplified redirect mode detector
// (C11): given a message and session flags, decide only whether the
// request should redirect to the learning subsystem, and in which
// mode — not the learning subsystem's own state machine.
package moderoute

import (
	"regexp"
	"strings"
)

// Mode is the learning-subsystem mode a redirect targets.
type Mode string

const (
	ModeRunner   Mode = "runner"
	ModeDesigner Mode = "designer"
)

// Decision is the outcome of a routing check.
type Decision struct {
	Redirect      bool
	Mode          Mode
	BypassExplore bool
	Topic         string
}

// SessionFlags carries the session state the decision depends on.
type SessionFlags struct {
	HasActivePracticeDrill bool
	HasActiveExploreSession bool
}

var practiceIntentPattern = regexp.MustCompile(`(?i)\b(quiz me|drill|practice (this|that|it)|give me (a|another) (problem|question))\b`)

var goalStatementPattern = regexp.MustCompile(`(?i)\blearn (.+) to (.+)\b|\bin (\d+) weeks?\b|\bpass the (.+) exam\b`)

var goalCreationPattern = regexp.MustCompile(`(?i)\bi want to learn\b|\bteach me\b|\bhelp me learn\b`)

// freeformTopicPattern captures the subject of a "learn X" goal
// statement that doesn't fit goalStatementPattern's "learn X to Y" or
// "pass the X exam" shapes — e.g. "I want to learn Rust for systems
// programming" (spec §4.4 scenario S5). The trailing optional clause
// strips a dangling "to <goal>" so it doesn't get folded into the topic.
var freeformTopicPattern = regexp.MustCompile(`(?i)\blearn\s+(.+?)(?:\s+to\s+.+)?$`)

// extractTopic pulls the subject of a learning goal out of message, for
// use as Decision.Topic on a redirect. It returns "" when no topic can
// be identified, which is itself a valid outcome — not every redirect
// is triggered by a goal statement with an extractable subject.
func extractTopic(message string) string {
	if m := goalStatementPattern.FindStringSubmatch(message); m != nil {
		if m[1] != "" {
			return strings.TrimSpace(m[1])
		}
		if m[4] != "" {
			return strings.TrimSpace(m[4])
		}
	}
	if m := freeformTopicPattern.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Decide applies the priority-ordered rules from spec §4.4. Identical
// inputs always yield an identical Decision — the specification
// requires stability, not any particular redirect target.
func Decide(message string, flags SessionFlags) Decision {
	switch {
	case flags.HasActivePracticeDrill && practiceIntentPattern.MatchString(message):
		return Decision{Redirect: true, Mode: ModeRunner}

	case flags.HasActiveExploreSession:
		return Decision{Redirect: true, Mode: ModeDesigner}

	case goalStatementPattern.MatchString(message):
		return Decision{Redirect: true, Mode: ModeDesigner, BypassExplore: true, Topic: extractTopic(message)}

	case goalCreationPattern.MatchString(message):
		return Decision{Redirect: true, Mode: ModeDesigner, Topic: extractTopic(message)}

	default:
		return Decision{Redirect: false}
	}
}
