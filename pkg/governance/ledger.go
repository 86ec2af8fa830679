package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const timeFormat = time.RFC3339

// VersionLedger owns version and status transitions on artifacts. It computes
// next semantic versions and maintains the supersession chain so that exactly
// one version per (tenant, code) lineage is ACTIVE.
type VersionLedger struct {
	db    *gorm.DB
	store *ArtifactStore
	audit *AuditStore
	now   func() time.Time

	// locks serializes activations per lineage. Under weaker isolation
	// levels two concurrent sibling activations could each observe an
	// empty ACTIVE slot before either commits.
	locks sync.Map // tenantID/code -> *sync.Mutex
}

// NewVersionLedger creates a ledger over the given DB. The audit store is
// optional; pass nil to skip audit events.
func NewVersionLedger(db *gorm.DB, audit *AuditStore) *VersionLedger {
	return &VersionLedger{
		db:    db,
		store: NewArtifactStore(db),
		audit: audit,
		now:   time.Now,
	}
}

// SetClock overrides the ledger's clock. Intended for tests.
func (l *VersionLedger) SetClock(now func() time.Time) { l.now = now }

// Store exposes the underlying artifact store for read paths.
func (l *VersionLedger) Store() *ArtifactStore { return l.store }

func (l *VersionLedger) lockLineage(tenantID, code string) func() {
	v, _ := l.locks.LoadOrStore(tenantID+"/"+code, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateArtifact creates the first DRAFT version of a new lineage.
func (l *VersionLedger) CreateArtifact(tenantID, code string, kind ArtifactKind, title, category, content, actor string) (*ArtifactRecord, error) {
	if tenantID == "" {
		tenantID = "default"
	}
	existing, err := l.store.Latest(tenantID, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("lineage %s already exists (latest version %s)", code, existing.Version)
	}

	record := &ArtifactRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Code:      code,
		Kind:      string(kind),
		Title:     title,
		Category:  category,
		Version:   "1.0.0",
		Status:    string(StatusDraft),
		Content:   content,
		CreatedBy: actor,
	}
	if err := l.store.Create(record); err != nil {
		return nil, err
	}

	l.appendAudit(tenantID, "governance.artifact.created", actor, record.ID, "", nil,
		JSONAny{"code": code, "version": record.Version})
	return record, nil
}

// CreateNewVersion forks the latest version of a lineage into a new DRAFT.
// Explicit changes override inherited fields. The prior version's status is
// left untouched: an ACTIVE prior stays ACTIVE until the new version is
// activated, and a DRAFT source is not superseded by forking.
func (l *VersionLedger) CreateNewVersion(tenantID, code string, changes ArtifactChanges, bump BumpType, actor string) (*ArtifactRecord, error) {
	if tenantID == "" {
		tenantID = "default"
	}
	latest, err := l.store.Latest(tenantID, code)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrLineageNotFound
	}

	next, err := NextVersion(latest.Version, bump)
	if err != nil {
		return nil, err
	}

	record := &ArtifactRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Code:      code,
		Kind:      latest.Kind,
		Title:     latest.Title,
		Category:  latest.Category,
		Version:   next,
		Status:    string(StatusDraft),
		Content:   latest.Content,
		CreatedBy: actor,
	}
	if changes.Title != nil {
		record.Title = *changes.Title
	}
	if changes.Category != nil {
		record.Category = *changes.Category
	}
	if changes.Content != nil {
		record.Content = *changes.Content
	}

	if err := l.store.Create(record); err != nil {
		return nil, err
	}

	l.appendAudit(tenantID, "governance.version.created", actor, record.ID, "",
		JSONAny{"version": latest.Version},
		JSONAny{"version": next, "bump": string(bump)})
	return record, nil
}

// Activate transitions an APPROVED artifact to ACTIVE. Any other ACTIVE
// artifact of the same lineage is transitioned to SUPERSEDED inside the same
// transaction, so a window with two ACTIVE versions, or none, is never
// observable. Returns the activated artifact and the superseded sibling, if
// any.
func (l *VersionLedger) Activate(artifactID, actor string) (*ArtifactRecord, *ArtifactRecord, error) {
	target, err := l.store.Get(artifactID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, ErrArtifactNotFound
	}

	unlock := l.lockLineage(target.TenantID, target.Code)
	defer unlock()

	var activated, superseded *ArtifactRecord
	now := l.now()

	err = l.db.Transaction(func(tx *gorm.DB) error {
		var record ArtifactRecord
		if err := tx.Where("id = ?", artifactID).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrArtifactNotFound
			}
			return fmt.Errorf("get artifact: %w", err)
		}

		if record.Status != string(StatusApproved) {
			return &InvalidTransitionError{
				Code:    "ARTIFACT_NOT_APPROVED",
				From:    ArtifactStatus(record.Status),
				To:      StatusActive,
				Message: fmt.Sprintf("artifact %s is %s; only APPROVED artifacts can be activated", artifactID, record.Status),
			}
		}

		var current ArtifactRecord
		err := tx.Where("tenant_id = ? AND code = ? AND status = ? AND id <> ?",
			record.TenantID, record.Code, string(StatusActive), record.ID).First(&current).Error
		switch {
		case err == nil:
			if err := setStatus(tx, current.ID, StatusSuperseded, actor, now, map[string]any{
				"superseded_by_id": record.ID,
			}); err != nil {
				return err
			}
			current.Status = string(StatusSuperseded)
			current.SupersededByID = record.ID
			superseded = &current
		case err == gorm.ErrRecordNotFound:
			// First activation in the lineage.
		default:
			return fmt.Errorf("find active sibling: %w", err)
		}

		if err := setStatus(tx, record.ID, StatusActive, actor, now, nil); err != nil {
			return err
		}
		record.Status = string(StatusActive)
		record.StatusChangedBy = actor
		record.StatusChangedAt = &now
		activated = &record
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	newVal := JSONAny{"status": string(StatusActive), "version": activated.Version}
	if superseded != nil {
		newVal["supersededVersion"] = superseded.Version
	}
	l.appendAudit(activated.TenantID, "governance.artifact.activated", actor, activated.ID, "",
		JSONAny{"status": string(StatusApproved)}, newVal)

	return activated, superseded, nil
}

// Archive retires an artifact. Allowed from APPROVED, ACTIVE, or SUPERSEDED.
func (l *VersionLedger) Archive(artifactID, actor string) (*ArtifactRecord, error) {
	record, err := l.store.Get(artifactID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrArtifactNotFound
	}

	switch ArtifactStatus(record.Status) {
	case StatusApproved, StatusActive, StatusSuperseded:
	default:
		return nil, &InvalidTransitionError{
			Code:    "ARTIFACT_NOT_ARCHIVABLE",
			From:    ArtifactStatus(record.Status),
			To:      StatusArchived,
			Message: fmt.Sprintf("artifact %s is %s and cannot be archived", artifactID, record.Status),
		}
	}

	now := l.now()
	if err := setStatus(l.db, record.ID, StatusArchived, actor, now, nil); err != nil {
		return nil, err
	}
	oldStatus := record.Status
	record.Status = string(StatusArchived)
	record.StatusChangedBy = actor
	record.StatusChangedAt = &now

	l.appendAudit(record.TenantID, "governance.artifact.archived", actor, record.ID, "",
		JSONAny{"status": oldStatus}, JSONAny{"status": string(StatusArchived)})
	return record, nil
}

// ListLineage returns all versions of a lineage ordered ascending by semver.
func (l *VersionLedger) ListLineage(tenantID, code string) ([]ArtifactRecord, error) {
	return l.store.ListLineage(tenantID, code)
}

func (l *VersionLedger) appendAudit(tenantID, eventType, actor, entityID, reason string, oldVal, newVal JSONAny) {
	if l.audit == nil {
		return
	}
	// Best-effort; a failed audit write must not fail the operation.
	_ = l.audit.Append(&AuditEventRecord{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		CorrelationID: uuid.New().String(),
		EventType:     eventType,
		Actor:         actor,
		EntityType:    "artifact",
		EntityID:      entityID,
		Outcome:       "success",
		Reason:        reason,
		OldValue:      oldVal,
		NewValue:      newVal,
	})
}
