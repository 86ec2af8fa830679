package governance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GovernanceOrchestrator ties the ledger, workflow, and coverage resolver
// together. It owns the artifact-to-request status coupling: submission moves
// an artifact into PENDING_APPROVAL, and request resolution moves it to
// APPROVED or back to DRAFT.
type GovernanceOrchestrator struct {
	db       *gorm.DB
	ledger   *VersionLedger
	workflow *ApprovalWorkflow
	coverage *CoverageResolver
}

// NewGovernanceOrchestrator composes the governance services. The coverage
// resolver is optional; without one EvaluateArtifact returns an error.
func NewGovernanceOrchestrator(db *gorm.DB, ledger *VersionLedger, workflow *ApprovalWorkflow, coverage *CoverageResolver) *GovernanceOrchestrator {
	return &GovernanceOrchestrator{
		db:       db,
		ledger:   ledger,
		workflow: workflow,
		coverage: coverage,
	}
}

// Ledger exposes the version ledger.
func (o *GovernanceOrchestrator) Ledger() *VersionLedger { return o.ledger }

// Workflow exposes the approval workflow.
func (o *GovernanceOrchestrator) Workflow() *ApprovalWorkflow { return o.workflow }

// Submit opens an approval request for an artifact. The artifact must be
// DRAFT or UNDER_REVIEW; it transitions to PENDING_APPROVAL and the request
// is routed through the workflow's threshold table.
func (o *GovernanceOrchestrator) Submit(artifactID string, decisionType DecisionType, amount *decimal.Decimal, requestedBy string) (*ApprovalRequest, error) {
	record, err := o.ledger.Store().Get(artifactID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrArtifactNotFound
	}

	switch ArtifactStatus(record.Status) {
	case StatusDraft, StatusUnderReview:
	default:
		return nil, &InvalidTransitionError{
			Code:    "ARTIFACT_NOT_SUBMITTABLE",
			From:    ArtifactStatus(record.Status),
			To:      StatusPendingApproval,
			Message: fmt.Sprintf("artifact %s is %s; only DRAFT or UNDER_REVIEW artifacts can be submitted", artifactID, record.Status),
		}
	}

	pending, err := o.workflow.Store().ListPendingForEntity("artifact", artifactID)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("artifact %s already has a pending approval request %s", artifactID, pending[0].ID)
	}

	req, err := o.workflow.Create(record.TenantID, EntityRef{EntityType: "artifact", EntityID: artifactID}, decisionType, amount, requestedBy)
	if err != nil {
		return nil, err
	}

	if err := setStatus(o.db, artifactID, StatusPendingApproval, requestedBy, o.ledger.now(), nil); err != nil {
		return nil, err
	}
	return req, nil
}

// Decide forwards a step decision to the workflow, then propagates a resolved
// request back onto its artifact: APPROVED moves the artifact to APPROVED
// (activation stays a separate explicit step), REJECTED reverts it to DRAFT
// so the author can edit and resubmit.
func (o *GovernanceOrchestrator) Decide(requestID string, stepOrder int, decision Decision, decidedBy, comments string) (*ApprovalRequest, error) {
	req, err := o.workflow.Decide(requestID, stepOrder, decision, decidedBy, comments)
	if err != nil {
		return nil, err
	}
	if err := o.propagate(req, decidedBy); err != nil {
		return nil, err
	}
	return req, nil
}

// Withdraw forwards a withdrawal to the workflow and reverts the artifact to
// DRAFT.
func (o *GovernanceOrchestrator) Withdraw(requestID, withdrawnBy string) (*ApprovalRequest, error) {
	req, err := o.workflow.Withdraw(requestID, withdrawnBy)
	if err != nil {
		return nil, err
	}
	if err := o.propagate(req, withdrawnBy); err != nil {
		return nil, err
	}
	return req, nil
}

func (o *GovernanceOrchestrator) propagate(req *ApprovalRequest, actor string) error {
	if req.EntityRef.EntityType != "artifact" {
		return nil
	}

	var target ArtifactStatus
	switch req.Status {
	case RequestApproved:
		target = StatusApproved
	case RequestRejected, RequestWithdrawn:
		target = StatusDraft
	default:
		return nil
	}

	record, err := o.ledger.Store().Get(req.EntityRef.EntityID)
	if err != nil {
		return err
	}
	if record == nil || record.Status != string(StatusPendingApproval) {
		// Artifact moved on independently; the request outcome stands on
		// its own.
		return nil
	}
	return setStatus(o.db, record.ID, target, actor, o.ledger.now(), nil)
}

// EvaluateArtifact grades an artifact's content against the requirement
// matrix.
func (o *GovernanceOrchestrator) EvaluateArtifact(artifactID string) (*CoverageReport, error) {
	if o.coverage == nil {
		return nil, fmt.Errorf("no requirement matrix configured")
	}
	record, err := o.ledger.Store().Get(artifactID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrArtifactNotFound
	}
	return o.coverage.Evaluate(record.Content), nil
}
