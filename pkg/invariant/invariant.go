// Package invariant implements the invariant checker (C12): a fixed set
// of response-level invariants run once after generation and before
// byte emission. Critical violations halt the response; non-critical
// violations are logged and the response is marked degraded.
package invariant

import (
	"regexp"

	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/pipeline"
	"github.com/lensguard/gatekeeper/pkg/saferender"
)

// Severity of a violated invariant.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityNonCritical Severity = "non_critical"
)

// Violation describes one failed invariant.
type Violation struct {
	Name     string
	Severity Severity
	Detail   string
}

// Report is the result of running every invariant against a State.
type Report struct {
	Violations []Violation
	Degraded   bool
}

// Critical reports whether any violation in the report is critical,
// meaning the overall response must be halted.
func (r Report) Critical() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

const maxRegenerations = 2

var preciseFinancialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\d+\.\d{2}`),
	regexp.MustCompile(`\d+\.\d{2}%`),
	regexp.MustCompile(`\d{1,3}(,\d{3})+\.\d{2}`),
}

// Check runs every invariant from spec §4.1 against s and the rendered
// response text that the safety-rendering stage produced.
func Check(s *pipeline.State, renderedText string) Report {
	var report Report

	add := func(name string, sev Severity, detail string) {
		report.Violations = append(report.Violations, Violation{Name: name, Severity: sev, Detail: detail})
		if sev == SeverityNonCritical {
			report.Degraded = true
		}
	}

	// 1. Crisis resource invariant.
	if s.ShieldResult != nil && s.ShieldResult.Action == "crisis" {
		if !saferender.VerifyStructure(renderedText) {
			add("crisis_resource_block", SeverityCritical, "response did not begin with the verbatim crisis-resource block")
		}
	}

	// 2. Soft veto without valid ack must not produce a generation.
	if s.ShieldResult != nil && s.ShieldResult.Action == "warn" && !s.Flags.AckTokenValid {
		if s.Generation != nil {
			add("soft_veto_no_generation", SeverityCritical, "a generation was produced despite an unacknowledged soft veto")
		}
	}

	// 3. Spark is non-null only when stance = sword.
	if s.Spark != nil && s.Stance != pipeline.StanceSword {
		add("spark_requires_sword_stance", SeverityCritical, "spark payload present outside sword stance")
	}

	// 4. Degraded verification must carry low confidence and verified=false.
	if s.LensResult != nil && s.DomainImmediate && s.LensResult.FreshnessWarning != "" {
		if s.Confidence != "low" || s.Verified {
			add("degraded_verification_confidence", SeverityNonCritical, "verification was required and degraded but confidence/verified flags were not downgraded")
		}
	}

	// 5. Regeneration count bound.
	if s.Flags.RegenerationCount > maxRegenerations {
		add("regeneration_cap", SeverityCritical, "regeneration count exceeded the cap")
	}

	// 6. Requested actions must originate from a trusted source.
	for _, ra := range s.RequestedActions {
		switch ra.Source {
		case pipeline.ActionSourceUIButton, pipeline.ActionSourceCommandParser, pipeline.ActionSourceAPIField:
			// trusted
		default:
			add("action_source_trust", SeverityCritical, "requested action \""+ra.Name+"\" did not originate from a trusted source")
		}
	}

	// 7. Immediate domain + failed live fetch must not contain precise
	// financial numeric patterns.
	if s.DomainImmediate && s.LiveFetchFailed {
		for _, pattern := range preciseFinancialPatterns {
			if pattern.MatchString(renderedText) {
				add("precise_numerics_without_live_data", SeverityCritical, "response contains a precise financial figure despite a failed live fetch")
				break
			}
		}
	}

	// 8. High-confidence claims require verified=true.
	if s.HighConfidenceClaim && !s.Verified {
		add("high_confidence_requires_verified", SeverityCritical, "a high-confidence claim was made without verification")
	}

	// 9. Under quote_evidence_only constraints, every numeric literal in
	// the rendered text must be a member of the evidence pack's
	// numeric allow-list — no invented figures may slip through.
	if s.LensResult != nil && s.LensResult.Evidence != nil && s.LensResult.ResponseConstraints.Level == evidence.ConstraintQuoteEvidenceOnly {
		pack := s.LensResult.Evidence
		for _, tok := range evidence.ExtractNumericTokens(renderedText) {
			if !pack.AllowsToken(tok) {
				add("quote_evidence_only_numeric", SeverityCritical, "response contains numeric literal \""+tok+"\" not present in the evidence pack")
				break
			}
		}
	}

	return report
}
