package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApprovalWorkflow drives approval requests through their ordered steps. It
// owns all step mutation: decisions, clarification round-trips, withdrawal,
// and escalation. Authorities are resolved once at creation time and
// snapshotted onto the steps, so threshold table swaps never affect in-flight
// requests.
type ApprovalWorkflow struct {
	db       *gorm.DB
	store    *ApprovalStore
	resolver *AuthorityResolver
	cfg      *GovernanceConfig
	audit    *AuditStore
	now      func() time.Time

	// locks serializes mutations per request so the lowest-pending-step
	// invariant cannot be violated by concurrent decisions.
	locks sync.Map // requestID -> *sync.Mutex
}

// NewApprovalWorkflow creates a workflow over the given DB and configuration.
// The audit store is optional.
func NewApprovalWorkflow(db *gorm.DB, resolver *AuthorityResolver, cfg *GovernanceConfig, audit *AuditStore) *ApprovalWorkflow {
	return &ApprovalWorkflow{
		db:       db,
		store:    NewApprovalStore(db),
		resolver: resolver,
		cfg:      cfg,
		audit:    audit,
		now:      time.Now,
	}
}

// SetClock overrides the workflow's clock. Intended for tests.
func (w *ApprovalWorkflow) SetClock(now func() time.Time) { w.now = now }

// Store exposes the underlying approval store for read paths.
func (w *ApprovalWorkflow) Store() *ApprovalStore { return w.store }

func (w *ApprovalWorkflow) lock(requestID string) func() {
	v, _ := w.locks.LoadOrStore(requestID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create builds a new approval request for an entity. The step sequence comes
// from the configuration map for the decision type; steps without a fixed
// authority are bound to the committee resolved from the threshold table.
// The due date is requestedAt plus the timeline of the first step's
// threshold. Returns ErrNoAuthority when nothing resolves.
func (w *ApprovalWorkflow) Create(tenantID string, entity EntityRef, decisionType DecisionType, amount *decimal.Decimal, requestedBy string) (*ApprovalRequest, error) {
	if tenantID == "" {
		tenantID = "default"
	}

	specs := w.cfg.Sequences[string(decisionType)]
	if len(specs) == 0 {
		specs = []StepSpec{{Name: "Committee Approval"}}
	}

	resolution, err := w.resolver.Resolve(decisionType, amount)
	if err != nil && sequenceNeedsResolution(specs) {
		return nil, err
	}

	requestedAt := w.now()
	req := &ApprovalRequestRecord{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		EntityType:   entity.EntityType,
		EntityID:     entity.EntityID,
		DecisionType: string(decisionType),
		Status:       string(RequestPending),
		CurrentStep:  1,
		RequestedBy:  requestedBy,
		RequestedAt:  requestedAt,
	}
	if amount != nil {
		req.Amount = decimal.NullDecimal{Decimal: *amount, Valid: true}
	}

	steps := make([]ApprovalStepRecord, 0, len(specs))
	for i, spec := range specs {
		authority := spec.Authority
		timeline := 0
		if resolution != nil {
			timeline = resolution.Threshold.TimelineDays
		}
		if authority == "" {
			if resolution == nil {
				return nil, ErrNoAuthority
			}
			authority = resolution.Authority
		}
		steps = append(steps, ApprovalStepRecord{
			ID:           uuid.New().String(),
			StepOrder:    i + 1,
			Name:         spec.Name,
			Authority:    authority,
			TimelineDays: timeline,
			Status:       string(StepPending),
		})
	}

	// SLA window comes from the first step's resolved threshold; fall back
	// to a conservative default when the sequence is fully fixed.
	timelineDays := steps[0].TimelineDays
	if timelineDays == 0 {
		timelineDays = 30
	}
	req.DueDate = requestedAt.AddDate(0, 0, timelineDays)

	if err := w.store.Create(req, steps); err != nil {
		return nil, err
	}

	w.appendAudit(tenantID, "governance.approval.requested", requestedBy, req.ID, entity, "", nil, JSONAny{
		"decisionType": string(decisionType),
		"steps":        len(steps),
		"dueDate":      req.DueDate.Format(timeFormat),
	})

	api := w.toAPI(req, steps)
	return &api, nil
}

// Decide records a committee decision on a step. The step must be the lowest
// non-terminal step of its request; deciding ahead fails with OutOfOrderError
// and re-deciding a terminal step fails with DuplicateDecisionError. A
// rejection short-circuits the request: all later steps become SKIPPED.
// Approving the final step closes the request as APPROVED.
func (w *ApprovalWorkflow) Decide(requestID string, stepOrder int, decision Decision, decidedBy, comments string) (*ApprovalRequest, error) {
	switch decision {
	case DecideApprove, DecideReject, DecideNeedsInfo:
	default:
		return nil, fmt.Errorf("unknown decision %q (expected APPROVED, REJECTED, or NEEDS_INFO)", decision)
	}

	unlock := w.lock(requestID)
	defer unlock()

	var outReq *ApprovalRequestRecord
	var outSteps []ApprovalStepRecord
	now := w.now()

	err := w.db.Transaction(func(tx *gorm.DB) error {
		req, steps, err := w.store.getTx(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}

		var target *ApprovalStepRecord
		for i := range steps {
			if steps[i].StepOrder == stepOrder {
				target = &steps[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("request %s has no step %d", requestID, stepOrder)
		}

		if isTerminalStep(StepStatus(target.Status)) {
			return &DuplicateDecisionError{RequestID: requestID, StepOrder: stepOrder, StepStatus: StepStatus(target.Status)}
		}
		// A closed request has no decidable steps left.
		if req.Status != string(RequestPending) {
			return &DuplicateDecisionError{RequestID: requestID, StepOrder: stepOrder, StepStatus: StepStatus(target.Status)}
		}

		lowest := lowestOpenStep(steps)
		if lowest == nil || lowest.StepOrder != stepOrder {
			current := req.CurrentStep
			if lowest != nil {
				current = lowest.StepOrder
			}
			return &OutOfOrderError{RequestID: requestID, StepOrder: stepOrder, CurrentStep: current}
		}

		switch decision {
		case DecideNeedsInfo:
			target.Status = string(StepNeedsInfo)
			target.Comments = comments
			if err := saveStep(tx, target, now); err != nil {
				return err
			}

		case DecideApprove:
			target.Status = string(StepApproved)
			target.DecidedBy = decidedBy
			target.DecidedAt = &now
			target.Comments = comments
			if err := saveStep(tx, target, now); err != nil {
				return err
			}

			if next := lowestOpenStep(steps); next != nil {
				req.CurrentStep = next.StepOrder
			} else {
				req.Status = string(RequestApproved)
				req.ResolvedBy = decidedBy
				req.ResolvedAt = &now
			}
			if err := saveRequest(tx, req); err != nil {
				return err
			}

		case DecideReject:
			target.Status = string(StepRejected)
			target.DecidedBy = decidedBy
			target.DecidedAt = &now
			target.Comments = comments
			if err := saveStep(tx, target, now); err != nil {
				return err
			}

			for i := range steps {
				if steps[i].StepOrder > stepOrder && !isTerminalStep(StepStatus(steps[i].Status)) {
					steps[i].Status = string(StepSkipped)
					if err := saveStep(tx, &steps[i], now); err != nil {
						return err
					}
				}
			}

			req.Status = string(RequestRejected)
			req.ResolvedBy = decidedBy
			req.ResolvedAt = &now
			if err := saveRequest(tx, req); err != nil {
				return err
			}
		}

		outReq = req
		outSteps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Closed requests accept no further mutation; drop the lock entry so
	// the map does not grow for the process lifetime.
	if outReq.Status != string(RequestPending) {
		w.locks.Delete(requestID)
	}

	w.appendAudit(outReq.TenantID, "governance.approval.decision", decidedBy, requestID,
		EntityRef{EntityType: outReq.EntityType, EntityID: outReq.EntityID}, comments, nil, JSONAny{
			"stepOrder": stepOrder,
			"decision":  string(decision),
			"status":    outReq.Status,
		})

	api := w.toAPI(outReq, outSteps)
	return &api, nil
}

// ProvideInfo returns a NEEDS_INFO step to PENDING after the requester has
// supplied clarification. The clarification is appended to the step comments;
// downstream steps never see NEEDS_INFO as a distinct state.
func (w *ApprovalWorkflow) ProvideInfo(requestID, requester, comments string) (*ApprovalRequest, error) {
	unlock := w.lock(requestID)
	defer unlock()

	var outReq *ApprovalRequestRecord
	var outSteps []ApprovalStepRecord
	now := w.now()

	err := w.db.Transaction(func(tx *gorm.DB) error {
		req, steps, err := w.store.getTx(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}
		if req.Status != string(RequestPending) {
			return fmt.Errorf("request %s is %s; clarification is only accepted while pending", requestID, req.Status)
		}

		var target *ApprovalStepRecord
		for i := range steps {
			if steps[i].Status == string(StepNeedsInfo) {
				target = &steps[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("request %s has no step awaiting information", requestID)
		}

		target.Status = string(StepPending)
		if target.Comments != "" {
			target.Comments = target.Comments + "\n" + comments
		} else {
			target.Comments = comments
		}
		if err := saveStep(tx, target, now); err != nil {
			return err
		}

		outReq = req
		outSteps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.appendAudit(outReq.TenantID, "governance.approval.info_provided", requester, requestID,
		EntityRef{EntityType: outReq.EntityType, EntityID: outReq.EntityID}, comments, nil, nil)

	api := w.toAPI(outReq, outSteps)
	return &api, nil
}

// Withdraw closes a pending request as WITHDRAWN. It is rejected, not
// ignored, once any step holds a terminal status: a withdrawal after a
// committee has decided would erase a recorded decision.
func (w *ApprovalWorkflow) Withdraw(requestID, withdrawnBy string) (*ApprovalRequest, error) {
	unlock := w.lock(requestID)
	defer unlock()

	var outReq *ApprovalRequestRecord
	var outSteps []ApprovalStepRecord
	now := w.now()

	err := w.db.Transaction(func(tx *gorm.DB) error {
		req, steps, err := w.store.getTx(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}
		if req.Status != string(RequestPending) {
			return &NotWithdrawableError{RequestID: requestID, Status: RequestStatus(req.Status)}
		}
		for i := range steps {
			if isTerminalStep(StepStatus(steps[i].Status)) {
				return &NotWithdrawableError{RequestID: requestID, Status: RequestStatus(req.Status)}
			}
		}

		for i := range steps {
			steps[i].Status = string(StepSkipped)
			if err := saveStep(tx, &steps[i], now); err != nil {
				return err
			}
		}

		req.Status = string(RequestWithdrawn)
		req.ResolvedBy = withdrawnBy
		req.ResolvedAt = &now
		if err := saveRequest(tx, req); err != nil {
			return err
		}

		outReq = req
		outSteps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.locks.Delete(requestID)

	w.appendAudit(outReq.TenantID, "governance.approval.withdrawn", withdrawnBy, requestID,
		EntityRef{EntityType: outReq.EntityType, EntityID: outReq.EntityID}, "", nil, nil)

	api := w.toAPI(outReq, outSteps)
	return &api, nil
}

// Escalate reassigns the current step to the next-higher authority tier. It
// is only legal once the request is OVERDUE. Without a configured higher
// tier the request is flagged for manual attention instead; escalation
// never silently approves.
func (w *ApprovalWorkflow) Escalate(requestID, escalatedBy string) (*ApprovalRequest, error) {
	unlock := w.lock(requestID)
	defer unlock()

	var outReq *ApprovalRequestRecord
	var outSteps []ApprovalStepRecord
	now := w.now()
	var fromAuthority, toAuthority string

	err := w.db.Transaction(func(tx *gorm.DB) error {
		req, steps, err := w.store.getTx(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrRequestNotFound
		}
		if req.Status != string(RequestPending) {
			return &NotEscalatableError{RequestID: requestID, SLAStatus: w.slaStatus(req, now)}
		}
		if sla := w.slaStatus(req, now); sla != SLAOverdue {
			return &NotEscalatableError{RequestID: requestID, SLAStatus: sla}
		}

		current := lowestOpenStep(steps)
		if current == nil {
			return fmt.Errorf("request %s has no open step to escalate", requestID)
		}

		fromAuthority = current.Authority
		if higher, ok := w.cfg.Escalation[current.Authority]; ok {
			current.Authority = higher
			toAuthority = higher
			if err := saveStep(tx, current, now); err != nil {
				return err
			}
		}

		req.Escalated = true
		if err := saveRequest(tx, req); err != nil {
			return err
		}

		outReq = req
		outSteps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}

	newVal := JSONAny{"fromAuthority": fromAuthority}
	if toAuthority != "" {
		newVal["toAuthority"] = toAuthority
	} else {
		newVal["manualAttention"] = true
	}
	w.appendAudit(outReq.TenantID, "governance.approval.escalated", escalatedBy, requestID,
		EntityRef{EntityType: outReq.EntityType, EntityID: outReq.EntityID}, "", nil, newVal)

	api := w.toAPI(outReq, outSteps)
	return &api, nil
}

// Get returns an approval request with its derived SLA status.
func (w *ApprovalWorkflow) Get(requestID string) (*ApprovalRequest, error) {
	req, steps, err := w.store.Get(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	api := w.toAPI(req, steps)
	return &api, nil
}

// slaStatus derives the SLA state at the given instant. Never stored.
func (w *ApprovalWorkflow) slaStatus(req *ApprovalRequestRecord, now time.Time) SLAStatus {
	if now.After(req.DueDate) {
		return SLAOverdue
	}
	window := req.DueDate.Sub(req.RequestedAt)
	if window <= 0 {
		return SLAOverdue
	}
	fraction := w.cfg.SLA.AtRiskFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = 0.2
	}
	remaining := req.DueDate.Sub(now)
	if float64(remaining) <= float64(window)*fraction {
		return SLAAtRisk
	}
	return SLAOnTime
}

// toAPI converts records to the API type, recomputing the SLA status.
func (w *ApprovalWorkflow) toAPI(req *ApprovalRequestRecord, steps []ApprovalStepRecord) ApprovalRequest {
	api := ApprovalRequest{
		ID:           req.ID,
		TenantID:     req.TenantID,
		EntityRef:    EntityRef{EntityType: req.EntityType, EntityID: req.EntityID},
		DecisionType: DecisionType(req.DecisionType),
		Status:       RequestStatus(req.Status),
		CurrentStep:  req.CurrentStep,
		RequestedBy:  req.RequestedBy,
		RequestedAt:  req.RequestedAt.Format(timeFormat),
		DueDate:      req.DueDate.Format(timeFormat),
		Escalated:    req.Escalated,
		ResolvedBy:   req.ResolvedBy,
	}
	if req.Amount.Valid {
		amt := req.Amount.Decimal
		api.Amount = &amt
	}
	if req.ResolvedAt != nil {
		api.ResolvedAt = req.ResolvedAt.Format(timeFormat)
	}
	if RequestStatus(req.Status) == RequestPending {
		api.SLAStatus = w.slaStatus(req, w.now())
	} else {
		api.SLAStatus = SLAOnTime
	}

	api.Steps = make([]ApprovalStep, len(steps))
	for i, st := range steps {
		step := ApprovalStep{
			StepOrder:    st.StepOrder,
			Name:         st.Name,
			Authority:    st.Authority,
			TimelineDays: st.TimelineDays,
			Status:       StepStatus(st.Status),
			DecidedBy:    st.DecidedBy,
			Comments:     st.Comments,
		}
		if st.DecidedAt != nil {
			step.DecidedAt = st.DecidedAt.Format(timeFormat)
		}
		api.Steps[i] = step
	}
	return api
}

func (w *ApprovalWorkflow) appendAudit(tenantID, eventType, actor, correlationID string, entity EntityRef, reason string, oldVal, newVal JSONAny) {
	if w.audit == nil {
		return
	}
	_ = w.audit.Append(&AuditEventRecord{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		CorrelationID: correlationID,
		EventType:     eventType,
		Actor:         actor,
		EntityType:    entity.EntityType,
		EntityID:      entity.EntityID,
		Outcome:       "success",
		Reason:        reason,
		OldValue:      oldVal,
		NewValue:      newVal,
	})
}

// lowestOpenStep returns the lowest-ordered step that is PENDING or
// NEEDS_INFO, or nil when every step is terminal.
func lowestOpenStep(steps []ApprovalStepRecord) *ApprovalStepRecord {
	var lowest *ApprovalStepRecord
	for i := range steps {
		st := StepStatus(steps[i].Status)
		if st != StepPending && st != StepNeedsInfo {
			continue
		}
		if lowest == nil || steps[i].StepOrder < lowest.StepOrder {
			lowest = &steps[i]
		}
	}
	return lowest
}

func isTerminalStep(s StepStatus) bool {
	return s == StepApproved || s == StepRejected || s == StepSkipped
}

func sequenceNeedsResolution(specs []StepSpec) bool {
	for _, s := range specs {
		if s.Authority == "" {
			return true
		}
	}
	return false
}

func saveStep(tx *gorm.DB, step *ApprovalStepRecord, now time.Time) error {
	step.UpdatedAt = now
	if err := tx.Save(step).Error; err != nil {
		return fmt.Errorf("save approval step %d: %w", step.StepOrder, err)
	}
	return nil
}

func saveRequest(tx *gorm.DB, req *ApprovalRequestRecord) error {
	if err := tx.Save(req).Error; err != nil {
		return fmt.Errorf("save approval request: %w", err)
	}
	return nil
}
