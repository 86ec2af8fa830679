package governance

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// ArtifactStore provides CRUD operations for artifact records. Status and
// version transitions go through the VersionLedger, which owns them; other
// components read through this store but never write lifecycle fields.
type ArtifactStore struct {
	db *gorm.DB
}

// NewArtifactStore creates a new ArtifactStore.
func NewArtifactStore(db *gorm.DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// AutoMigrate creates or updates the artifacts table.
func (s *ArtifactStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ArtifactRecord{}); err != nil {
		return fmt.Errorf("auto-migrate artifacts: %w", err)
	}
	return nil
}

// Create inserts a new artifact record.
// If TenantID is empty, it defaults to "default".
func (s *ArtifactStore) Create(record *ArtifactRecord) error {
	if record.TenantID == "" {
		record.TenantID = "default"
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

// Get retrieves an artifact by ID. Returns nil, nil if no record exists.
func (s *ArtifactStore) Get(id string) (*ArtifactRecord, error) {
	var record ArtifactRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &record, nil
}

// ListLineage returns all versions of a lineage ordered ascending by semver.
func (s *ArtifactStore) ListLineage(tenantID, code string) ([]ArtifactRecord, error) {
	if tenantID == "" {
		tenantID = "default"
	}
	var records []ArtifactRecord
	err := s.db.Where("tenant_id = ? AND code = ?", tenantID, code).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return CompareVersions(records[i].Version, records[j].Version) < 0
	})
	return records, nil
}

// Latest returns the lineage member with the highest version, or nil, nil if
// the lineage is empty.
func (s *ArtifactStore) Latest(tenantID, code string) (*ArtifactRecord, error) {
	records, err := s.ListLineage(tenantID, code)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[len(records)-1], nil
}

// List returns paginated artifacts within a tenant, optionally filtered by
// kind and/or status. pageToken is the ID of the last record from the
// previous page; pass "" for the first page.
func (s *ArtifactStore) List(tenantID string, kind ArtifactKind, status ArtifactStatus, pageSize int, pageToken string) ([]ArtifactRecord, string, error) {
	if tenantID == "" {
		tenantID = "default"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("tenant_id = ?", tenantID).Order("id ASC").Limit(pageSize + 1)
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if pageToken != "" {
		query = query.Where("id > ?", pageToken)
	}

	var records []ArtifactRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list artifacts: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].ID
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

// setStatus updates lifecycle fields inside the given transaction handle.
// Only the VersionLedger and GovernanceOrchestrator call this.
func setStatus(tx *gorm.DB, id string, status ArtifactStatus, actor string, now time.Time, extra map[string]any) error {
	updates := map[string]any{
		"status":            string(status),
		"status_changed_by": actor,
		"status_changed_at": &now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&ArtifactRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update artifact status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrArtifactNotFound
	}
	return nil
}

// recordToArtifact converts a record to the API type.
func recordToArtifact(rec *ArtifactRecord) Artifact {
	a := Artifact{
		ID:              rec.ID,
		TenantID:        rec.TenantID,
		Code:            rec.Code,
		Kind:            ArtifactKind(rec.Kind),
		Title:           rec.Title,
		Category:        rec.Category,
		Version:         rec.Version,
		Status:          ArtifactStatus(rec.Status),
		Content:         rec.Content,
		SupersededByID:  rec.SupersededByID,
		StatusChangedBy: rec.StatusChangedBy,
		CreatedBy:       rec.CreatedBy,
		CreatedAt:       rec.CreatedAt.Format(timeFormat),
	}
	if rec.StatusChangedAt != nil {
		a.StatusChangedAt = rec.StatusChangedAt.Format(timeFormat)
	}
	return a
}
