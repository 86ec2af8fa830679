package governance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestRecord(tenant string, createdAt time.Time) (*ApprovalRequestRecord, []ApprovalStepRecord) {
	req := &ApprovalRequestRecord{
		ID:           uuid.New().String(),
		TenantID:     tenant,
		EntityType:   "artifact",
		EntityID:     uuid.New().String(),
		DecisionType: string(DecisionSPIFApproval),
		Status:       string(RequestPending),
		CurrentStep:  1,
		RequestedBy:  "alice",
		RequestedAt:  createdAt,
		DueDate:      createdAt.AddDate(0, 0, 5),
		CreatedAt:    createdAt,
	}
	steps := []ApprovalStepRecord{
		{ID: uuid.New().String(), StepOrder: 1, Name: "Committee Approval", Authority: "SGCC", TimelineDays: 5, Status: string(StepPending)},
	}
	return req, steps
}

func TestApprovalStore_CreateAndGet(t *testing.T) {
	store := NewApprovalStore(newTestDB(t))

	req, steps := newRequestRecord("", time.Now())
	require.NoError(t, store.Create(req, steps))
	assert.Equal(t, "default", req.TenantID)

	got, gotSteps, err := store.Get(req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, req.EntityID, got.EntityID)
	require.Len(t, gotSteps, 1)
	assert.Equal(t, req.ID, gotSteps[0].RequestID)
	assert.Equal(t, "SGCC", gotSteps[0].Authority)

	got, gotSteps, err = store.Get("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, gotSteps)
}

func TestApprovalStore_StepsOrdered(t *testing.T) {
	store := NewApprovalStore(newTestDB(t))

	req, _ := newRequestRecord("default", time.Now())
	// Insert steps out of order; reads must come back sorted.
	steps := []ApprovalStepRecord{
		{ID: uuid.New().String(), StepOrder: 3, Name: "Committee Approval", Authority: "SGCC+Legal", Status: string(StepPending)},
		{ID: uuid.New().String(), StepOrder: 1, Name: "Stakeholder Review", Authority: "SGCC", Status: string(StepPending)},
		{ID: uuid.New().String(), StepOrder: 2, Name: "Legal Review", Authority: "Legal", Status: string(StepPending)},
	}
	require.NoError(t, store.Create(req, steps))

	_, gotSteps, err := store.Get(req.ID)
	require.NoError(t, err)
	require.Len(t, gotSteps, 3)
	assert.Equal(t, 1, gotSteps[0].StepOrder)
	assert.Equal(t, 2, gotSteps[1].StepOrder)
	assert.Equal(t, 3, gotSteps[2].StepOrder)
}

func TestApprovalStore_List(t *testing.T) {
	store := NewApprovalStore(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		req, steps := newRequestRecord("default", base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			req.Status = string(RequestApproved)
		}
		require.NoError(t, store.Create(req, steps))
	}
	other, otherSteps := newRequestRecord("team-b", base)
	require.NoError(t, store.Create(other, otherSteps))

	records, _, total, err := store.List("default", "", "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, records, 5)
	// Newest first.
	assert.True(t, !records[0].CreatedAt.Before(records[1].CreatedAt))

	records, _, total, err = store.List("default", RequestPending, "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, records, 4)

	records, _, _, err = store.List("team-b", "", "", 10, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestApprovalStore_List_Pagination(t *testing.T) {
	store := NewApprovalStore(newTestDB(t))
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		req, steps := newRequestRecord("default", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(req, steps))
	}

	page1, token, total, err := store.List("default", "", "", 3, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 3)
	require.NotEmpty(t, token)

	page2, token2, _, err := store.List("default", "", "", 3, token)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Empty(t, token2)

	_, _, _, err = store.List("default", "", "", 3, "not-a-timestamp")
	require.Error(t, err)
}

func TestApprovalStore_ListPendingForEntity(t *testing.T) {
	store := NewApprovalStore(newTestDB(t))

	req, steps := newRequestRecord("default", time.Now())
	require.NoError(t, store.Create(req, steps))

	closed, closedSteps := newRequestRecord("default", time.Now())
	closed.EntityID = req.EntityID
	closed.Status = string(RequestWithdrawn)
	require.NoError(t, store.Create(closed, closedSteps))

	pending, err := store.ListPendingForEntity("artifact", req.EntityID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}
