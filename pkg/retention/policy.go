package retention

import "time"

// Category names a class of stored data a RetentionPolicy governs.
type Category string

const (
	CategoryAuditEvent     Category = "audit_event"
	CategoryConsentRecord  Category = "consent_record"
	CategoryShieldSession  Category = "shield_session"
	CategoryDeadLetter     Category = "scheduler_dead_letter"
)

// Action is what happens to data once it ages past RetentionDays.
type Action string

const (
	ActionDelete    Action = "delete"
	ActionArchive   Action = "archive"
	ActionAnonymize Action = "anonymize"
	ActionFlag      Action = "flag"
)

// Policy is the RetentionPolicy data-model entry from spec §3, one per
// category.
type Policy struct {
	Category             Category
	RetentionDays         int
	Action                Action
	ArchiveBeforeDelete   bool
	ArchiveRetentionDays  int
	Enabled               bool
}

// DefaultPolicies returns the built-in per-category retention defaults.
// Audit events carry their own TTL at write time (spec §6.6:
// "TTL = retentionDays × 86400"); of the remaining categories, only the
// scheduler dead-letter policy is enforced, by the periodic Service
// sweep. The consent-record and shield-session policies are not acted on.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryAuditEvent: {
			Category:      CategoryAuditEvent,
			RetentionDays: 90,
			Action:        ActionDelete,
			Enabled:       true,
		},
		CategoryConsentRecord: {
			Category:             CategoryConsentRecord,
			RetentionDays:        365 * 7,
			Action:               ActionArchive,
			ArchiveBeforeDelete:  true,
			ArchiveRetentionDays: 365 * 10,
			Enabled:              true,
		},
		CategoryShieldSession: {
			Category:      CategoryShieldSession,
			RetentionDays: 30,
			Action:        ActionFlag,
			Enabled:       true,
		},
		CategoryDeadLetter: {
			Category:      CategoryDeadLetter,
			RetentionDays: 14,
			Action:        ActionDelete,
			Enabled:       true,
		},
	}
}

func (p Policy) ttl() time.Duration {
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}
