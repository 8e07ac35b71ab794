package pipeline

import (
	"regexp"

	"github.com/lensguard/gatekeeper/pkg/shield"
)

var (
	crisisPattern = regexp.MustCompile(`(?i)\b(kill myself|suicide|end my life|want to die|hurt myself)\b`)
	concernPattern = regexp.MustCompile(`(?i)\b(hopeless|can't go on|no reason to live|self-harm|i hate myself)\b`)

	actionIntentPattern = regexp.MustCompile(`(?i)\b(do it for me|make (it|this|that) happen|execute|run the|schedule|create a plan to)\b`)
	safetyTopicPattern  = regexp.MustCompile(`(?i)\b(is it safe|should i worry|risk of|side effects? of|dangerous)\b`)

	externalToolPattern = regexp.MustCompile(`(?i)\b(search the web|look (it |this )?up|check online|fetch|send an email|create a (calendar )?event)\b`)
)

// ClassifyIntent is the "intent" stage: a heuristic classification of
// safety signal, urgency, and stance from the raw message. It has no
// external dependencies and is pure, matching the mode detector's
// stability requirement.
func ClassifyIntent(message string, liveData bool, learningIntent bool) IntentSummary {
	summary := IntentSummary{
		PrimaryRoute: RouteSay,
		Stance:       StanceLens,
		SafetySignal: shield.SignalNone,
		Urgency:      UrgencyLow,
		LiveData:     liveData,
		LearningIntent: learningIntent,
	}

	switch {
	case crisisPattern.MatchString(message):
		summary.SafetySignal = shield.SignalHigh
		summary.Urgency = UrgencyHigh
		summary.Stance = StanceShield
	case concernPattern.MatchString(message):
		summary.SafetySignal = shield.SignalMedium
		summary.Urgency = UrgencyMedium
		summary.Stance = StanceShield
	case safetyTopicPattern.MatchString(message):
		summary.SafetySignal = shield.SignalLow
	}

	if summary.SafetySignal == shield.SignalNone || summary.SafetySignal == shield.SignalLow {
		switch {
		case actionIntentPattern.MatchString(message):
			summary.PrimaryRoute = RouteDo
			summary.Stance = StanceSword
		case externalToolPattern.MatchString(message):
			summary.PrimaryRoute = RouteDo
			summary.ExternalTool = true
		}
	}

	return summary
}
