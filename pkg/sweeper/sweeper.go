// Package sweeper runs the background maintenance loops of the governance
// service: detecting approval requests that blew their SLA and pruning old
// audit events.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sparcc/governance/pkg/governance"
)

// EventSLABreached is appended once per request the first time a sweep finds
// it past its due date. Escalation itself stays a deliberate human action;
// the sweeper only surfaces the breach.
const EventSLABreached = "governance.approval.sla_breached"

// Sweeper periodically scans for overdue approval requests and prunes audit
// events past their retention window.
type Sweeper struct {
	approvals *governance.ApprovalStore
	audit     *governance.AuditStore
	cfg       *Config
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// New creates a sweeper over the given stores.
func New(approvals *governance.ApprovalStore, audit *governance.AuditStore, cfg *Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		approvals: approvals,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Run starts the sweep loops. It blocks until the context is cancelled, then
// waits for in-flight passes to finish.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("sweeper disabled")
		return
	}

	s.logger.Info("sweeper starting",
		"interval", s.cfg.Interval.String(),
		"auditRetentionDays", s.cfg.AuditRetentionDays)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.slaLoop(ctx)
	}()

	if s.cfg.AuditRetentionDays > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.retentionLoop(ctx)
		}()
	}

	<-ctx.Done()
	s.logger.Info("sweeper shutting down")
	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) slaLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if flagged, err := s.SweepSLA(); err != nil {
				s.logger.Error("sla sweep failed", "error", err)
			} else if flagged > 0 {
				s.logger.Info("flagged overdue approval requests", "count", flagged)
			}
		}
	}
}

func (s *Sweeper) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().AddDate(0, 0, -s.cfg.AuditRetentionDays)
			deleted, err := s.audit.DeleteOlderThan(cutoff)
			if err != nil {
				s.logger.Error("audit retention pass failed", "error", err)
			} else if deleted > 0 {
				s.logger.Info("pruned old audit events", "count", deleted)
			}
		}
	}
}

// SweepSLA finds pending requests past their due date and appends one
// sla_breached audit event per request. Requests already flagged are
// skipped, so repeated sweeps are idempotent. Returns how many requests
// were newly flagged.
func (s *Sweeper) SweepSLA() (int, error) {
	overdue, err := s.approvals.ListOverdue(s.now())
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range overdue {
		req := &overdue[i]

		seen, err := s.audit.HasEvent(req.ID, EventSLABreached)
		if err != nil {
			return flagged, err
		}
		if seen {
			continue
		}

		overdueBy := s.now().Sub(req.DueDate)
		if err := s.audit.Append(&governance.AuditEventRecord{
			ID:            uuid.New().String(),
			TenantID:      req.TenantID,
			CorrelationID: req.ID,
			EventType:     EventSLABreached,
			Actor:         "sweeper",
			EntityType:    "approval_request",
			EntityID:      req.ID,
			Outcome:       "success",
			NewValue: governance.JSONAny{
				"decisionType": req.DecisionType,
				"dueDate":      req.DueDate.Format(time.RFC3339),
				"overdueHours": int(overdueBy.Hours()),
			},
		}); err != nil {
			return flagged, err
		}

		s.logger.Warn("approval request past SLA",
			"requestID", req.ID,
			"decisionType", req.DecisionType,
			"dueDate", req.DueDate.Format(time.RFC3339))
		flagged++
	}

	return flagged, nil
}
