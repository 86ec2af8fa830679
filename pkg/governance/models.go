package governance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ArtifactRecord stores one version of a governance artifact. A lineage is
// the set of records sharing (tenant_id, code); at most one of them may be
// ACTIVE at any time.
type ArtifactRecord struct {
	ID              string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID        string     `gorm:"column:tenant_id;index:idx_artifact_lineage,priority:1;uniqueIndex:idx_artifact_version,priority:1;default:default;not null"`
	Code            string     `gorm:"column:code;index:idx_artifact_lineage,priority:2;uniqueIndex:idx_artifact_version,priority:2;not null"`
	Version         string     `gorm:"column:version;uniqueIndex:idx_artifact_version,priority:3;not null"`
	Kind            string     `gorm:"column:kind;not null"`
	Title           string     `gorm:"column:title;not null"`
	Category        string     `gorm:"column:category"`
	Status          string     `gorm:"column:status;index:idx_artifact_status;default:DRAFT;not null"`
	Content         string     `gorm:"column:content;type:text"`
	SupersededByID  string     `gorm:"column:superseded_by_id"`
	StatusChangedBy string     `gorm:"column:status_changed_by"`
	StatusChangedAt *time.Time `gorm:"column:status_changed_at"`
	CreatedBy       string     `gorm:"column:created_by;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ArtifactRecord) TableName() string { return "artifacts" }

// ApprovalRequestRecord stores an approval request and its resolved routing.
// Authorities are snapshotted onto the step records at creation time and are
// not re-resolved when the threshold table changes.
type ApprovalRequestRecord struct {
	ID           string              `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID     string              `gorm:"column:tenant_id;index:idx_request_tenant;default:default;not null"`
	EntityType   string              `gorm:"column:entity_type;index:idx_request_entity,priority:1;not null"`
	EntityID     string              `gorm:"column:entity_id;index:idx_request_entity,priority:2;not null"`
	DecisionType string              `gorm:"column:decision_type;not null"`
	Amount       decimal.NullDecimal `gorm:"column:amount;type:decimal(20,4)"`
	Status       string              `gorm:"column:status;index:idx_request_status;default:PENDING;not null"`
	CurrentStep  int                 `gorm:"column:current_step;not null;default:1"`
	RequestedBy  string              `gorm:"column:requested_by;not null"`
	RequestedAt  time.Time           `gorm:"column:requested_at;not null"`
	DueDate      time.Time           `gorm:"column:due_date;not null"`
	Escalated    bool                `gorm:"column:escalated;not null;default:false"`
	ResolvedBy   string              `gorm:"column:resolved_by"`
	ResolvedAt   *time.Time          `gorm:"column:resolved_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ApprovalRequestRecord) TableName() string { return "approval_requests" }

// ApprovalStepRecord stores one ordered step of an approval request.
type ApprovalStepRecord struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID    string     `gorm:"column:request_id;uniqueIndex:idx_step_order,priority:1;index:idx_step_request;not null"`
	StepOrder    int        `gorm:"column:step_order;uniqueIndex:idx_step_order,priority:2;not null"`
	Name         string     `gorm:"column:name;not null"`
	Authority    string     `gorm:"column:authority;not null"`
	TimelineDays int        `gorm:"column:timeline_days;not null"`
	Status       string     `gorm:"column:status;default:PENDING;not null"`
	DecidedBy    string     `gorm:"column:decided_by"`
	DecidedAt    *time.Time `gorm:"column:decided_at"`
	Comments     string     `gorm:"column:comments;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ApprovalStepRecord) TableName() string { return "approval_steps" }

// AuditEventRecord is an immutable audit log entry.
type AuditEventRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID      string    `gorm:"column:tenant_id;index:idx_audit_tenant_time,priority:1;default:default;not null"`
	CorrelationID string    `gorm:"column:correlation_id;index"`
	EventType     string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor         string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	EntityType    string    `gorm:"column:entity_type"`
	EntityID      string    `gorm:"column:entity_id;index:idx_audit_entity_time,priority:1"`
	Outcome       string    `gorm:"column:outcome;not null"` // success, failure, denied
	Reason        string    `gorm:"column:reason"`
	OldValue      JSONAny   `gorm:"column:old_value;type:text"`
	NewValue      JSONAny   `gorm:"column:new_value;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;index:idx_audit_tenant_time,priority:2;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_entity_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (AuditEventRecord) TableName() string { return "audit_events" }
