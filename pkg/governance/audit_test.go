package governance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditEvent(tenant, eventType, entityID string, createdAt time.Time) *AuditEventRecord {
	return &AuditEventRecord{
		ID:            uuid.New().String(),
		TenantID:      tenant,
		CorrelationID: uuid.New().String(),
		EventType:     eventType,
		Actor:         "alice",
		EntityType:    "artifact",
		EntityID:      entityID,
		Outcome:       "success",
		NewValue:      JSONAny{"status": "ACTIVE"},
		CreatedAt:     createdAt,
	}
}

func TestAuditStore_AppendAndListByEntity(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	entityID := uuid.New().String()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.activated", entityID, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.created", uuid.New().String(), base)))

	events, _, total, err := store.ListByEntity(entityID, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 3)
	// Newest first.
	assert.True(t, !events[0].CreatedAt.Before(events[1].CreatedAt))
	assert.Equal(t, "ACTIVE", events[0].NewValue["status"])
}

func TestAuditStore_ListByEntity_Pagination(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	entityID := uuid.New().String()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(newAuditEvent("default", "governance.approval.decision", entityID, base.Add(time.Duration(i)*time.Minute))))
	}

	page1, token, total, err := store.ListByEntity(entityID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 3)
	require.NotEmpty(t, token)

	page2, token2, _, err := store.ListByEntity(entityID, 3, token)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Empty(t, token2)
}

func TestAuditStore_ListAll_FilterByEventType(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.created", uuid.New().String(), base)))
	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.activated", uuid.New().String(), base.Add(time.Minute))))
	require.NoError(t, store.Append(newAuditEvent("team-b", "governance.artifact.created", uuid.New().String(), base)))

	events, _, total, err := store.ListAll("default", 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, events, 2)

	events, _, total, err = store.ListAll("default", 10, "", "governance.artifact.created")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "governance.artifact.created", events[0].EventType)
}

func TestAuditStore_DeleteOlderThan(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	base := time.Now()

	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.created", uuid.New().String(), base.Add(-48*time.Hour))))
	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.created", uuid.New().String(), base.Add(-24*time.Hour))))
	require.NoError(t, store.Append(newAuditEvent("default", "governance.artifact.created", uuid.New().String(), base)))

	deleted, err := store.DeleteOlderThan(base.Add(-36 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, _, total, err := store.ListAll("default", 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
