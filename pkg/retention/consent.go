// Package retention implements the retention/consent/data-subject store
// (C16): time-triggered cleanup per category policy, an append-only
// consent history with a derived current snapshot, and GDPR-style
// export/delete data-subject requests.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

const consentIndexPrefix = "retention:consent:index:" // + userID, sorted set
const consentRecordPrefix = "retention:consent:record:" // + id

// ConsentRecord is one append-only grant/revoke event.
type ConsentRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Purpose     string    `json:"purpose"`
	Granted     bool      `json:"granted"`
	Method      string    `json:"method"`
	Timestamp   time.Time `json:"timestamp"`
	PolicyVersion string  `json:"policyVersion"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
}

// ConsentSnapshot is the derived current state for a user: last write
// per purpose wins.
type ConsentSnapshot struct {
	Purposes            []string `json:"purposes"`
	HasRequiredConsents bool     `json:"hasRequiredConsents"`
	ChangeCount         int      `json:"changeCount"`
}

// ConsentStore is the append-only consent ledger plus its derived
// current-snapshot view, per spec §3/§6.6 (sorted set index keyed by
// user, scored by timestamp; each record at its own key).
type ConsentStore struct {
	store           kvstore.Store
	requiredPurposes []string
	now             func() time.Time
}

// NewConsentStore constructs a ConsentStore. requiredPurposes names the
// purposes that must all be granted for HasRequiredConsents to be true.
func NewConsentStore(store kvstore.Store, requiredPurposes ...string) *ConsentStore {
	return &ConsentStore{store: store, requiredPurposes: requiredPurposes, now: time.Now}
}

// Append records a new consent event. It never mutates or removes a
// prior record (insert-only, per spec's data-model relationship).
func (c *ConsentStore) Append(ctx context.Context, userID, purpose string, granted bool, method, policyVersion string) (ConsentRecord, error) {
	rec := ConsentRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		Purpose:       purpose,
		Granted:       granted,
		Method:        method,
		Timestamp:     c.now().UTC(),
		PolicyVersion: policyVersion,
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return ConsentRecord{}, fmt.Errorf("encoding consent record: %w", err)
	}
	if err := c.store.Set(ctx, consentRecordPrefix+rec.ID, encoded, 0); err != nil {
		return ConsentRecord{}, fmt.Errorf("persisting consent record: %w", err)
	}
	if err := c.store.ZAdd(ctx, consentIndexPrefix+userID, float64(rec.Timestamp.UnixMilli()), rec.ID); err != nil {
		return ConsentRecord{}, fmt.Errorf("indexing consent record: %w", err)
	}
	return rec, nil
}

// History returns every consent record for userID in chronological order.
func (c *ConsentStore) History(ctx context.Context, userID string) ([]ConsentRecord, error) {
	ids, err := c.store.ZRange(ctx, consentIndexPrefix+userID, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("listing consent index: %w", err)
	}

	records := make([]ConsentRecord, 0, len(ids))
	for _, id := range ids {
		raw, found, err := c.store.Get(ctx, consentRecordPrefix+id)
		if err != nil {
			return nil, fmt.Errorf("fetching consent record %s: %w", id, err)
		}
		if !found {
			continue
		}
		var rec ConsentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding consent record %s: %w", id, err)
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

// Snapshot derives the current consent state from the full history:
// the last write per purpose wins.
func (c *ConsentStore) Snapshot(ctx context.Context, userID string) (ConsentSnapshot, error) {
	history, err := c.History(ctx, userID)
	if err != nil {
		return ConsentSnapshot{}, err
	}

	latest := map[string]bool{}
	for _, rec := range history {
		latest[rec.Purpose] = rec.Granted
	}

	snapshot := ConsentSnapshot{ChangeCount: len(history)}
	for purpose, granted := range latest {
		if granted {
			snapshot.Purposes = append(snapshot.Purposes, purpose)
		}
	}

	snapshot.HasRequiredConsents = true
	for _, required := range c.requiredPurposes {
		if !latest[required] {
			snapshot.HasRequiredConsents = false
			break
		}
	}
	return snapshot, nil
}

// Purge deletes a user's entire consent history and its index,
// per spec §9's GDPR-deletion open question. Nothing in this package
// writes archived copies of consent records (Policy.ArchiveBeforeDelete
// is not acted on), so there is nothing else to remove.
func (c *ConsentStore) Purge(ctx context.Context, userID string) error {
	ids, err := c.store.ZRange(ctx, consentIndexPrefix+userID, 0, -1)
	if err != nil {
		return fmt.Errorf("listing consent index: %w", err)
	}
	for _, id := range ids {
		if _, err := c.store.Delete(ctx, consentRecordPrefix+id); err != nil {
			return fmt.Errorf("deleting consent record %s: %w", id, err)
		}
	}
	_, err = c.store.Delete(ctx, consentIndexPrefix+userID)
	return err
}
