package governance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (*VersionLedger, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewVersionLedger(db, NewAuditStore(db)), db
}

func TestLedger_CreateArtifact(t *testing.T) {
	ledger, _ := newTestLedger(t)

	rec, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Windfall Policy", "compensation", "clawback terms", "alice")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", rec.Version)
	assert.Equal(t, string(StatusDraft), rec.Status)
	assert.Equal(t, "alice", rec.CreatedBy)

	// Lineage code is taken: a second create fails.
	_, err = ledger.CreateArtifact("default", "POL-001", KindPolicy, "Other", "", "", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLedger_CreateNewVersion(t *testing.T) {
	ledger, db := newTestLedger(t)

	first, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Windfall Policy", "compensation", "v1 content", "alice")
	require.NoError(t, err)

	// Move 1.0.0 through approval to ACTIVE so lineage has an active version.
	require.NoError(t, setStatus(db, first.ID, StatusActive, "alice", time.Now(), nil))

	// Bump twice to get to 1.2.0 as the latest.
	_, err = ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{}, BumpMinor, "alice")
	require.NoError(t, err)
	v12, err := ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{}, BumpMinor, "alice")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", v12.Version)

	title := "Windfall Policy (2026 edition)"
	v13, err := ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{Title: &title}, BumpMinor, "bob")
	require.NoError(t, err)

	assert.Equal(t, "1.3.0", v13.Version)
	assert.Equal(t, string(StatusDraft), v13.Status)
	assert.Equal(t, title, v13.Title)
	// Unchanged fields inherit from the forked version.
	assert.Equal(t, "compensation", v13.Category)
	assert.Equal(t, "v1 content", v13.Content)

	// The prior ACTIVE version stays ACTIVE; forking never supersedes.
	got, err := ledger.Store().Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusActive), got.Status)
	assert.Empty(t, got.SupersededByID)
}

func TestLedger_CreateNewVersion_LineageNotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.CreateNewVersion("default", "NOPE-1", ArtifactChanges{}, BumpPatch, "alice")
	assert.ErrorIs(t, err, ErrLineageNotFound)
}

func TestLedger_Activate_SupersedesActiveSibling(t *testing.T) {
	ledger, db := newTestLedger(t)

	old, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)
	require.NoError(t, setStatus(db, old.ID, StatusActive, "alice", time.Now(), nil))

	next, err := ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{}, BumpMinor, "alice")
	require.NoError(t, err)
	require.NoError(t, setStatus(db, next.ID, StatusApproved, "sgcc", time.Now(), nil))

	activated, superseded, err := ledger.Activate(next.ID, "sgcc")
	require.NoError(t, err)
	assert.Equal(t, string(StatusActive), activated.Status)
	require.NotNil(t, superseded)
	assert.Equal(t, old.ID, superseded.ID)
	assert.Equal(t, string(StatusSuperseded), superseded.Status)
	assert.Equal(t, next.ID, superseded.SupersededByID)

	// Exactly one ACTIVE version remains in the lineage.
	records, err := ledger.ListLineage("default", "POL-001")
	require.NoError(t, err)
	active := 0
	for _, r := range records {
		if r.Status == string(StatusActive) {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestLedger_Activate_ConcurrentSiblings(t *testing.T) {
	ledger, db := newTestLedger(t)

	a, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)
	require.NoError(t, setStatus(db, a.ID, StatusApproved, "sgcc", time.Now(), nil))

	b, err := ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{}, BumpMinor, "alice")
	require.NoError(t, err)
	require.NoError(t, setStatus(db, b.ID, StatusApproved, "sgcc", time.Now(), nil))

	// Two APPROVED siblings activated concurrently: whichever lands second
	// must observe and supersede the first, never leave both ACTIVE.
	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := ledger.Activate(id, "sgcc")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	records, err := ledger.ListLineage("default", "POL-001")
	require.NoError(t, err)
	active := 0
	for _, r := range records {
		if r.Status == string(StatusActive) {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestLedger_Activate_FirstActivation(t *testing.T) {
	ledger, db := newTestLedger(t)

	rec, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)
	require.NoError(t, setStatus(db, rec.ID, StatusApproved, "sgcc", time.Now(), nil))

	activated, superseded, err := ledger.Activate(rec.ID, "sgcc")
	require.NoError(t, err)
	assert.Equal(t, string(StatusActive), activated.Status)
	assert.Nil(t, superseded)
}

func TestLedger_Activate_RequiresApproved(t *testing.T) {
	ledger, _ := newTestLedger(t)

	rec, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)

	_, _, err = ledger.Activate(rec.ID, "sgcc")
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "ARTIFACT_NOT_APPROVED", transition.Code)
	assert.Equal(t, StatusDraft, transition.From)

	_, _, err = ledger.Activate("nonexistent", "sgcc")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLedger_Archive(t *testing.T) {
	ledger, db := newTestLedger(t)

	rec, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)

	// DRAFT is not archivable.
	_, err = ledger.Archive(rec.ID, "alice")
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "ARTIFACT_NOT_ARCHIVABLE", transition.Code)

	require.NoError(t, setStatus(db, rec.ID, StatusActive, "alice", time.Now(), nil))
	archived, err := ledger.Archive(rec.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, string(StatusArchived), archived.Status)
}

func TestLedger_AuditTrail(t *testing.T) {
	db := newTestDB(t)
	audit := NewAuditStore(db)
	ledger := NewVersionLedger(db, audit)

	rec, err := ledger.CreateArtifact("default", "POL-001", KindPolicy, "Policy", "", "v1", "alice")
	require.NoError(t, err)
	_, err = ledger.CreateNewVersion("default", "POL-001", ArtifactChanges{}, BumpPatch, "alice")
	require.NoError(t, err)

	events, _, total, err := audit.ListByEntity(rec.ID, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "governance.artifact.created", events[0].EventType)
	assert.Equal(t, "alice", events[0].Actor)
}
