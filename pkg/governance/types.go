package governance

import "github.com/shopspring/decimal"

// ArtifactKind distinguishes the lineage unit types that share the
// version/status lifecycle.
type ArtifactKind string

const (
	KindPolicy    ArtifactKind = "policy"
	KindDocument  ArtifactKind = "document"
	KindFramework ArtifactKind = "framework"
)

// ArtifactStatus represents artifact lifecycle states.
type ArtifactStatus string

const (
	StatusDraft           ArtifactStatus = "DRAFT"
	StatusUnderReview     ArtifactStatus = "UNDER_REVIEW"
	StatusPendingApproval ArtifactStatus = "PENDING_APPROVAL"
	StatusApproved        ArtifactStatus = "APPROVED"
	StatusActive          ArtifactStatus = "ACTIVE"
	StatusSuperseded      ArtifactStatus = "SUPERSEDED"
	StatusArchived        ArtifactStatus = "ARCHIVED"
	StatusRejected        ArtifactStatus = "REJECTED"
)

// DecisionType classifies what kind of governance decision is being requested.
type DecisionType string

const (
	DecisionPolicyChange     DecisionType = "POLICY_CHANGE"
	DecisionSPIFApproval     DecisionType = "SPIF_APPROVAL"
	DecisionWindfallReview   DecisionType = "WINDFALL_REVIEW"
	DecisionExceptionRequest DecisionType = "EXCEPTION_REQUEST"
	DecisionClawbackApproval DecisionType = "CLAWBACK_APPROVAL"
)

// RequestStatus represents the derived status of an approval request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestWithdrawn RequestStatus = "WITHDRAWN"
)

// StepStatus represents the status of a single approval step.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepApproved  StepStatus = "APPROVED"
	StepRejected  StepStatus = "REJECTED"
	StepNeedsInfo StepStatus = "NEEDS_INFO"
	StepSkipped   StepStatus = "SKIPPED"
)

// Decision is a committee verdict on a single step.
type Decision string

const (
	DecideApprove   Decision = "APPROVED"
	DecideReject    Decision = "REJECTED"
	DecideNeedsInfo Decision = "NEEDS_INFO"
)

// SLAStatus is derived from the request due date; never stored.
type SLAStatus string

const (
	SLAOnTime  SLAStatus = "ON_TIME"
	SLAAtRisk  SLAStatus = "AT_RISK"
	SLAOverdue SLAStatus = "OVERDUE"
)

// CoverageStatus grades a requirement's coverage in an artifact.
type CoverageStatus string

const (
	CoverageCovered   CoverageStatus = "COVERED"
	CoverageNeedsWork CoverageStatus = "NEEDS_WORK"
	CoverageMissing   CoverageStatus = "MISSING"
)

// EntityRef identifies the entity an approval request is about.
type EntityRef struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

// Artifact is the API-facing artifact type.
type Artifact struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenantId"`
	Code            string         `json:"code"`
	Kind            ArtifactKind   `json:"kind"`
	Title           string         `json:"title"`
	Category        string         `json:"category,omitempty"`
	Version         string         `json:"version"`
	Status          ArtifactStatus `json:"status"`
	Content         string         `json:"content,omitempty"`
	SupersededByID  string         `json:"supersededById,omitempty"`
	StatusChangedBy string         `json:"statusChangedBy,omitempty"`
	StatusChangedAt string         `json:"statusChangedAt,omitempty"` // RFC3339
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       string         `json:"createdAt"`
}

// ArtifactChanges carries the explicit field overrides for a new version.
// Nil fields inherit from the forked version.
type ArtifactChanges struct {
	Title    *string `json:"title,omitempty"`
	Category *string `json:"category,omitempty"`
	Content  *string `json:"content,omitempty"`
}

// ApprovalStep is the API-facing step type.
type ApprovalStep struct {
	StepOrder    int        `json:"stepOrder"`
	Name         string     `json:"name"`
	Authority    string     `json:"authority"`
	TimelineDays int        `json:"timelineDays"`
	Status       StepStatus `json:"status"`
	DecidedBy    string     `json:"decidedBy,omitempty"`
	DecidedAt    string     `json:"decidedAt,omitempty"`
	Comments     string     `json:"comments,omitempty"`
}

// ApprovalRequest is the API-facing approval request type. SLAStatus is
// recomputed on every read.
type ApprovalRequest struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenantId"`
	EntityRef    EntityRef       `json:"entityRef"`
	DecisionType DecisionType    `json:"decisionType"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Status       RequestStatus   `json:"status"`
	SLAStatus    SLAStatus       `json:"slaStatus"`
	CurrentStep  int             `json:"currentStep"`
	Steps        []ApprovalStep  `json:"steps"`
	RequestedBy  string          `json:"requestedBy"`
	RequestedAt  string          `json:"requestedAt"`
	DueDate      string          `json:"dueDate"`
	Escalated    bool            `json:"escalated,omitempty"`
	ResolvedBy   string          `json:"resolvedBy,omitempty"`
	ResolvedAt   string          `json:"resolvedAt,omitempty"`
}

// ApprovalRequestList is a paginated list of approval requests.
type ApprovalRequestList struct {
	Requests      []ApprovalRequest `json:"requests"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
	TotalSize     int               `json:"totalSize"`
}

// CoverageEntry is one requirement's verdict for an artifact.
type CoverageEntry struct {
	RequirementID string         `json:"requirementId"`
	Name          string         `json:"name"`
	Area          string         `json:"area,omitempty"`
	Severity      string         `json:"severity,omitempty"`
	Grade         string         `json:"grade"` // A, B, or C
	Status        CoverageStatus `json:"status"`
	Evidence      []string       `json:"evidence,omitempty"`
}

// CoverageSummary aggregates coverage entries into headline numbers.
type CoverageSummary struct {
	Covered           int `json:"covered"`
	NeedsWork         int `json:"needsWork"`
	Missing           int `json:"missing"`
	CompletenessScore int `json:"completenessScore"`
}
