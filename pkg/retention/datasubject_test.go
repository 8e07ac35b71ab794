package retention

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/shield"
)

func TestDataSubjectHandler_ExportThenDelete(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	auditLog := audit.New(store, 90)
	consent := NewConsentStore(store, "analytics")
	shieldEngine := shield.New(store, auditLog)

	_, err := consent.Append(ctx, "user-1", "analytics", true, "banner", "v1")
	require.NoError(t, err)
	require.NoError(t, auditLog.Record(ctx, audit.Event{Category: audit.CategoryGeneric, UserID: "user-1", Message: "test event"}))

	handler := NewDataSubjectHandler(consent, auditLog, shieldEngine)

	bundle, err := handler.Export(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, bundle.ConsentHistory, 1)
	assert.True(t, bundle.ConsentSnapshot.HasRequiredConsents)
	assert.NotEmpty(t, bundle.AuditEvents)

	require.NoError(t, handler.Delete(ctx, "user-1"))

	history, err := consent.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history, "deletion must purge the consent history")
}
