package governance

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sparcc/governance/pkg/tenancy"
)

// createApprovalHandler returns a handler that opens an approval request for
// an arbitrary entity, bypassing the artifact lifecycle coupling.
func createApprovalHandler(workflow *ApprovalWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		actor := extractActor(r)

		var body struct {
			EntityType   string `json:"entityType"`
			EntityID     string `json:"entityId"`
			DecisionType string `json:"decisionType"`
			Amount       string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if body.EntityType == "" || body.EntityID == "" || body.DecisionType == "" {
			writeError(w, http.StatusBadRequest, "entityType, entityId, and decisionType are required")
			return
		}

		var amount *decimal.Decimal
		if body.Amount != "" {
			d, err := decimal.NewFromString(body.Amount)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %v", err))
				return
			}
			amount = &d
		}

		req, err := workflow.Create(tenant, EntityRef{EntityType: body.EntityType, EntityID: body.EntityID},
			DecisionType(body.DecisionType), amount, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

// getApprovalHandler returns a handler that retrieves an approval request
// with its steps and current SLA status.
func getApprovalHandler(workflow *ApprovalWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		req, err := workflow.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// listApprovalsHandler returns a handler that lists approval requests with
// optional status/entity filters.
func listApprovalsHandler(workflow *ApprovalWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		status := RequestStatus(r.URL.Query().Get("status"))
		entityID := r.URL.Query().Get("entityId")
		pageSize := parsePageSize(r)
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := workflow.Store().List(tenant, status, entityID, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list approvals: %v", err))
			return
		}

		requests := make([]ApprovalRequest, 0, len(records))
		for i := range records {
			// Steps are fetched per request; list pages are capped at 100.
			req, err := workflow.Get(records[i].ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load approval %s: %v", records[i].ID, err))
				return
			}
			requests = append(requests, *req)
		}

		writeJSON(w, http.StatusOK, ApprovalRequestList{
			Requests:      requests,
			NextPageToken: nextToken,
			TotalSize:     total,
		})
	}
}

// submitDecisionHandler returns a handler that records a committee decision
// on one step. Decisions route through the orchestrator so resolved requests
// propagate onto their artifact.
func submitDecisionHandler(orchestrator *GovernanceOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		var body struct {
			StepOrder int    `json:"stepOrder"`
			Decision  string `json:"decision"`
			Comments  string `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if body.StepOrder < 1 {
			writeError(w, http.StatusBadRequest, "stepOrder is required")
			return
		}

		req, err := orchestrator.Decide(id, body.StepOrder, Decision(body.Decision), actor, body.Comments)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// provideInfoHandler returns a handler that answers a NEEDS_INFO step.
func provideInfoHandler(workflow *ApprovalWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		var body struct {
			Comments string `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		req, err := workflow.ProvideInfo(id, actor, body.Comments)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// withdrawApprovalHandler returns a handler that withdraws a pending request.
func withdrawApprovalHandler(orchestrator *GovernanceOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		req, err := orchestrator.Withdraw(id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// escalateApprovalHandler returns a handler that escalates an overdue request
// to the next-higher authority tier.
func escalateApprovalHandler(workflow *ApprovalWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		req, err := workflow.Escalate(id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
