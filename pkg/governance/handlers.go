package governance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sparcc/governance/pkg/tenancy"
)

// createArtifactHandler returns a handler that creates the first DRAFT
// version of a new lineage.
func createArtifactHandler(ledger *VersionLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		actor := extractActor(r)

		var body struct {
			Code     string `json:"code"`
			Kind     string `json:"kind"`
			Title    string `json:"title"`
			Category string `json:"category"`
			Content  string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if body.Code == "" || body.Title == "" {
			writeError(w, http.StatusBadRequest, "code and title are required")
			return
		}
		kind := ArtifactKind(body.Kind)
		switch kind {
		case KindPolicy, KindDocument, KindFramework:
		case "":
			kind = KindPolicy
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind: %s", body.Kind))
			return
		}

		record, err := ledger.CreateArtifact(tenant, body.Code, kind, body.Title, body.Category, body.Content, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordToArtifact(record))
	}
}

// getArtifactHandler returns a handler that retrieves one artifact version.
func getArtifactHandler(store *ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		record, err := store.Get(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get artifact: %v", err))
			return
		}
		if record == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("artifact %s not found", id))
			return
		}
		writeJSON(w, http.StatusOK, recordToArtifact(record))
	}
}

// listArtifactsHandler returns a handler that lists artifacts with optional
// kind/status filters.
func listArtifactsHandler(store *ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		kind := ArtifactKind(r.URL.Query().Get("kind"))
		status := ArtifactStatus(r.URL.Query().Get("status"))
		pageSize := parsePageSize(r)
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, err := store.List(tenant, kind, status, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list artifacts: %v", err))
			return
		}

		artifacts := make([]Artifact, len(records))
		for i := range records {
			artifacts[i] = recordToArtifact(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"artifacts":     artifacts,
			"nextPageToken": nextToken,
		})
	}
}

// listLineageHandler returns a handler that lists every version of a lineage
// in ascending version order.
func listLineageHandler(ledger *VersionLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		code := chi.URLParam(r, "code")

		records, err := ledger.ListLineage(tenant, code)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list lineage: %v", err))
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("lineage %s not found", code))
			return
		}

		artifacts := make([]Artifact, len(records))
		for i := range records {
			artifacts[i] = recordToArtifact(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
	}
}

// createVersionHandler returns a handler that forks the latest version of a
// lineage into a new DRAFT.
func createVersionHandler(ledger *VersionLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		code := chi.URLParam(r, "code")
		actor := extractActor(r)

		var body struct {
			Bump    string          `json:"bump"`
			Changes ArtifactChanges `json:"changes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		bump := BumpType(body.Bump)
		switch bump {
		case BumpMajor, BumpMinor, BumpPatch:
		case "":
			bump = BumpPatch
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown bump type: %s", body.Bump))
			return
		}

		record, err := ledger.CreateNewVersion(tenant, code, body.Changes, bump, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordToArtifact(record))
	}
}

// activateArtifactHandler returns a handler that activates an APPROVED
// artifact, superseding any ACTIVE sibling atomically.
func activateArtifactHandler(ledger *VersionLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		activated, superseded, err := ledger.Activate(id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := map[string]any{"artifact": recordToArtifact(activated)}
		if superseded != nil {
			resp["superseded"] = recordToArtifact(superseded)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// archiveArtifactHandler returns a handler that retires an artifact.
func archiveArtifactHandler(ledger *VersionLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		record, err := ledger.Archive(id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recordToArtifact(record))
	}
}

// submitArtifactHandler returns a handler that opens an approval request for
// an artifact and moves it to PENDING_APPROVAL.
func submitArtifactHandler(orchestrator *GovernanceOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := extractActor(r)

		var body struct {
			DecisionType string `json:"decisionType"`
			Amount       string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if body.DecisionType == "" {
			writeError(w, http.StatusBadRequest, "decisionType is required")
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

		req, err := orchestrator.Submit(id, DecisionType(body.DecisionType), amount, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, req)
	}
}

// evaluateCoverageHandler returns a handler that grades an artifact's content
// against the requirement matrix.
func evaluateCoverageHandler(orchestrator *GovernanceOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := orchestrator.EvaluateArtifact(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// getHistoryHandler returns a handler that lists paginated audit events for
// an entity.
func getHistoryHandler(auditStore *AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		pageSize := parsePageSize(r)
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := auditStore.ListByEntity(id, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]map[string]any, len(records))
		for i := range records {
			events[i] = auditEventToMap(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// listAuditHandler returns a handler that lists all audit events in a tenant.
func listAuditHandler(auditStore *AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantIDFromContext(r.Context())
		pageSize := parsePageSize(r)
		pageToken := r.URL.Query().Get("pageToken")
		eventType := r.URL.Query().Get("eventType")

		records, nextToken, total, err := auditStore.ListAll(tenant, pageSize, pageToken, eventType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]map[string]any, len(records))
		for i := range records {
			events[i] = auditEventToMap(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// resolveAuthorityHandler returns a handler that resolves the deciding
// authority for a decision type and optional amount.
func resolveAuthorityHandler(resolver *AuthorityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decisionType := r.URL.Query().Get("decisionType")
		if decisionType == "" {
			writeError(w, http.StatusBadRequest, "decisionType is required")
			return
		}

		var amount *decimal.Decimal
		if raw := r.URL.Query().Get("amount"); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount: %v", err))
				return
			}
			amount = &d
		}

		resolution, err := resolver.Resolve(DecisionType(decisionType), amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolution)
	}
}

// listThresholdsHandler returns a handler that lists the threshold table the
// resolver was built from.
func listThresholdsHandler(resolver *AuthorityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thresholds := resolver.Thresholds()
		if filter := r.URL.Query().Get("decisionType"); filter != "" {
			filtered := thresholds[:0]
			for _, t := range thresholds {
				if t.DecisionType == filter {
					filtered = append(filtered, t)
				}
			}
			thresholds = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"thresholds": thresholds})
	}
}

// extractActor extracts the actor from the request headers.
// Prefers X-User-Principal over X-User-Role, falls back to "system".
func extractActor(r *http.Request) string {
	if principal := r.Header.Get("X-User-Principal"); principal != "" {
		return principal
	}
	if role := r.Header.Get("X-User-Role"); role != "" {
		return role
	}
	return "system"
}

func parsePageSize(r *http.Request) int {
	pageSize := 20
	if ps := r.URL.Query().Get("pageSize"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			pageSize = v
		}
	}
	return pageSize
}

// auditEventToMap converts an audit event record to the API shape.
func auditEventToMap(rec *AuditEventRecord) map[string]any {
	return map[string]any{
		"id":            rec.ID,
		"correlationId": rec.CorrelationID,
		"eventType":     rec.EventType,
		"actor":         rec.Actor,
		"entityType":    rec.EntityType,
		"entityId":      rec.EntityID,
		"outcome":       rec.Outcome,
		"reason":        rec.Reason,
		"oldValue":      map[string]any(rec.OldValue),
		"newValue":      map[string]any(rec.NewValue),
		"createdAt":     rec.CreatedAt.Format(time.RFC3339),
	}
}

// writeDomainError maps domain errors to HTTP responses. Typed errors carry
// their machine-readable shape in the body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrArtifactNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrLineageNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrNoAuthority):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var invalidVersion *InvalidVersionError
	if errors.As(err, &invalidVersion) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var transition *InvalidTransitionError
	if errors.As(err, &transition) {
		writeJSON(w, http.StatusConflict, transition)
		return
	}
	var outOfOrder *OutOfOrderError
	if errors.As(err, &outOfOrder) {
		writeJSON(w, http.StatusConflict, outOfOrder)
		return
	}
	var duplicate *DuplicateDecisionError
	if errors.As(err, &duplicate) {
		writeJSON(w, http.StatusConflict, duplicate)
		return
	}
	var notWithdrawable *NotWithdrawableError
	if errors.As(err, &notWithdrawable) {
		writeJSON(w, http.StatusConflict, notWithdrawable)
		return
	}
	var notEscalatable *NotEscalatableError
	if errors.As(err, &notEscalatable) {
		writeJSON(w, http.StatusConflict, notEscalatable)
		return
	}

	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
