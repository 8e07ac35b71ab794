package retention

import (
	"context"
	"fmt"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/shield"
)

// ExportBundle is everything the pipeline holds about one user, handed
// out in response to a data-subject export request.
type ExportBundle struct {
	UserID          string          `json:"userId"`
	ConsentHistory  []ConsentRecord `json:"consentHistory"`
	ConsentSnapshot ConsentSnapshot `json:"consentSnapshot"`
	AuditEvents     []audit.Event   `json:"auditEvents"`
}

// DataSubjectHandler fulfills GDPR-style export and deletion requests
// across every store that holds per-user state.
type DataSubjectHandler struct {
	consent *ConsentStore
	auditLog *audit.Logger
	shield  *shield.Engine
}

// NewDataSubjectHandler wires the per-user stores a data-subject
// request must touch. shieldEngine may be nil if no active crisis
// session state needs to be cleared on deletion.
func NewDataSubjectHandler(consent *ConsentStore, auditLog *audit.Logger, shieldEngine *shield.Engine) *DataSubjectHandler {
	return &DataSubjectHandler{consent: consent, auditLog: auditLog, shield: shieldEngine}
}

// Export assembles the full export bundle for userID.
func (h *DataSubjectHandler) Export(ctx context.Context, userID string) (ExportBundle, error) {
	history, err := h.consent.History(ctx, userID)
	if err != nil {
		return ExportBundle{}, fmt.Errorf("exporting consent history: %w", err)
	}
	snapshot, err := h.consent.Snapshot(ctx, userID)
	if err != nil {
		return ExportBundle{}, fmt.Errorf("deriving consent snapshot: %w", err)
	}
	events, err := h.auditLog.ByUser(ctx, userID, 1000)
	if err != nil {
		return ExportBundle{}, fmt.Errorf("exporting audit events: %w", err)
	}

	bundle := ExportBundle{UserID: userID, ConsentHistory: history, ConsentSnapshot: snapshot, AuditEvents: events}
	h.recordRequest(ctx, userID, "export")
	return bundle, nil
}

// Delete purges userID's consent history and resets any shield state,
// per the GDPR-deletion open question. There are no archived copies of
// consent records to clean up: nothing in this package writes them.
func (h *DataSubjectHandler) Delete(ctx context.Context, userID string) error {
	if err := h.consent.Purge(ctx, userID); err != nil {
		return fmt.Errorf("purging consent history: %w", err)
	}
	if h.shield != nil {
		if err := h.shield.ResolveCrisis(ctx, userID); err != nil {
			return fmt.Errorf("clearing shield state: %w", err)
		}
	}
	h.recordRequest(ctx, userID, "delete")
	return nil
}

func (h *DataSubjectHandler) recordRequest(ctx context.Context, userID, kind string) {
	if h.auditLog == nil {
		return
	}
	_ = h.auditLog.Record(ctx, audit.Event{
		Category: audit.CategoryDataSubjectRequest,
		UserID:   userID,
		Message:  fmt.Sprintf("data-subject %s request fulfilled", kind),
	})
}
