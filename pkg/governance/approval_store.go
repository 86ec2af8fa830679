package governance

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ApprovalStore provides CRUD operations for approval requests and their
// steps. Step mutation goes through the ApprovalWorkflow, which owns it.
type ApprovalStore struct {
	db *gorm.DB
}

// NewApprovalStore creates a new ApprovalStore.
func NewApprovalStore(db *gorm.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// AutoMigrate creates or updates the approval tables.
func (s *ApprovalStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ApprovalRequestRecord{}); err != nil {
		return fmt.Errorf("auto-migrate approval_requests: %w", err)
	}
	if err := s.db.AutoMigrate(&ApprovalStepRecord{}); err != nil {
		return fmt.Errorf("auto-migrate approval_steps: %w", err)
	}
	return nil
}

// Create inserts a new approval request with its steps in one transaction.
// If TenantID is empty, it defaults to "default".
func (s *ApprovalStore) Create(req *ApprovalRequestRecord, steps []ApprovalStepRecord) error {
	if req.TenantID == "" {
		req.TenantID = "default"
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("create approval request: %w", err)
		}
		for i := range steps {
			steps[i].RequestID = req.ID
			if err := tx.Create(&steps[i]).Error; err != nil {
				return fmt.Errorf("create approval step %d: %w", steps[i].StepOrder, err)
			}
		}
		return nil
	})
}

// Get retrieves an approval request by ID with its steps ordered by
// step_order. Returns nil, nil, nil if no record exists.
func (s *ApprovalStore) Get(id string) (*ApprovalRequestRecord, []ApprovalStepRecord, error) {
	return s.getTx(s.db, id)
}

func (s *ApprovalStore) getTx(tx *gorm.DB, id string) (*ApprovalRequestRecord, []ApprovalStepRecord, error) {
	var req ApprovalRequestRecord
	if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get approval request: %w", err)
	}

	var steps []ApprovalStepRecord
	if err := tx.Where("request_id = ?", id).Order("step_order ASC").Find(&steps).Error; err != nil {
		return nil, nil, fmt.Errorf("get approval steps: %w", err)
	}

	return &req, steps, nil
}

// List returns paginated approval requests within a tenant, optionally
// filtered by status and/or entity ID. pageToken is an RFC3339Nano
// created_at timestamp from a previous page.
func (s *ApprovalStore) List(tenantID string, status RequestStatus, entityID string, pageSize int, pageToken string) ([]ApprovalRequestRecord, string, int, error) {
	if tenantID == "" {
		tenantID = "default"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	baseQuery := s.db.Model(&ApprovalRequestRecord{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		baseQuery = baseQuery.Where("status = ?", string(status))
	}
	if entityID != "" {
		baseQuery = baseQuery.Where("entity_id = ?", entityID)
	}

	var totalSize int64
	if err := baseQuery.Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count approval requests: %w", err)
	}

	query := s.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Limit(pageSize + 1)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []ApprovalRequestRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list approval requests: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// ListOverdue returns all pending approval requests whose due date has
// passed as of the given time, oldest due date first.
func (s *ApprovalStore) ListOverdue(asOf time.Time) ([]ApprovalRequestRecord, error) {
	var records []ApprovalRequestRecord
	query := s.db.Where("status = ? AND due_date < ?", string(RequestPending), asOf).
		Order("due_date ASC")
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list overdue approval requests: %w", err)
	}
	return records, nil
}

// ListPendingForEntity returns all pending approval requests for an entity.
func (s *ApprovalStore) ListPendingForEntity(entityType, entityID string) ([]ApprovalRequestRecord, error) {
	var records []ApprovalRequestRecord
	query := s.db.Where("entity_type = ? AND entity_id = ? AND status = ?",
		entityType, entityID, string(RequestPending))
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list pending approvals for entity: %w", err)
	}
	return records, nil
}
