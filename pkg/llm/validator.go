package llm

import (
	"context"
	"regexp"

	"github.com/lensguard/gatekeeper/pkg/pipeline"
)

// bannedPhrase is a pattern the personality-validation stage rejects
// outright rather than attempting to rewrite around, mirroring the
// compiled-pattern approach used elsewhere in this codebase for
// regex-driven text scanning.
type bannedPhrase struct {
	name    string
	pattern *regexp.Regexp
}

var bannedPhrases = []bannedPhrase{
	{"unverified_certainty", regexp.MustCompile(`(?i)\bI (am|'m) (100%|completely|absolutely) certain\b`)},
	{"fake_credential_claim", regexp.MustCompile(`(?i)\bas a (licensed|certified) (doctor|therapist|lawyer)\b`)},
}

// HeuristicValidator implements pipeline.Validator with deterministic,
// locally-evaluated checks — no model round trip required. It never
// rewrites text; it only accepts or rejects.
type HeuristicValidator struct{}

var _ pipeline.Validator = HeuristicValidator{}

// Validate reports a generation as unacceptable ("ok=false") if it
// matches a banned phrase, prompting the executor's regeneration loop.
func (HeuristicValidator) Validate(_ context.Context, text string) (rewritten string, verified bool, ok bool, err error) {
	for _, bp := range bannedPhrases {
		if bp.pattern.MatchString(text) {
			return text, false, false, nil
		}
	}
	return text, true, true, nil
}
