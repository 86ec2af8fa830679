package governance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	db := newTestDB(t)
	cfg := DefaultGovernanceConfig()
	thresholds, err := cfg.ResolveThresholds()
	require.NoError(t, err)

	audit := NewAuditStore(db)
	ledger := NewVersionLedger(db, audit)
	resolver := NewAuthorityResolver(thresholds)
	workflow := NewApprovalWorkflow(db, resolver, cfg, audit)

	matrix, err := ParseRequirementMatrix([]byte(testMatrix))
	require.NoError(t, err)

	orchestrator := NewGovernanceOrchestrator(db, ledger, workflow, NewCoverageResolver(matrix))
	return NewRouter(orchestrator, resolver, audit)
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-Principal", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
	return m
}

func createTestArtifact(t *testing.T, router chi.Router, code string) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/artifacts", map[string]any{
		"code":    code,
		"kind":    "policy",
		"title":   "SPIF Plan",
		"content": "clawback period and repayment schedule apply",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)["id"].(string)
}

func TestHandlers_CreateAndGetArtifact(t *testing.T) {
	router := newTestRouter(t)

	id := createTestArtifact(t, router, "POL-001")

	w := doRequest(t, router, http.MethodGet, "/artifacts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "POL-001", body["code"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "DRAFT", body["status"])
	assert.Equal(t, "alice", body["createdBy"])

	w = doRequest(t, router, http.MethodGet, "/artifacts/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_CreateArtifact_Validation(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/artifacts", map[string]any{"title": "no code"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/artifacts", map[string]any{
		"code": "POL-002", "title": "t", "kind": "spreadsheet",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_VersionAndLineage(t *testing.T) {
	router := newTestRouter(t)
	createTestArtifact(t, router, "POL-001")

	w := doRequest(t, router, http.MethodPost, "/lineages/POL-001/versions", map[string]any{
		"bump":    "minor",
		"changes": map[string]any{"title": "SPIF Plan v2"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "1.1.0", body["version"])
	assert.Equal(t, "SPIF Plan v2", body["title"])

	w = doRequest(t, router, http.MethodGet, "/lineages/POL-001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lineage := decodeBody(t, w)["artifacts"].([]any)
	assert.Len(t, lineage, 2)

	w = doRequest(t, router, http.MethodGet, "/lineages/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_FullApprovalFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createTestArtifact(t, router, "SPIF-001")

	// Submit for approval.
	w := doRequest(t, router, http.MethodPost, fmt.Sprintf("/artifacts/%s/actions/submit", id), map[string]any{
		"decisionType": "SPIF_APPROVAL",
		"amount":       "40000",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	reqBody := decodeBody(t, w)
	requestID := reqBody["id"].(string)
	steps := reqBody["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "SGCC", steps[0].(map[string]any)["authority"])

	// Artifact is now pending approval; activation is premature.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/artifacts/%s/actions/activate", id), map[string]any{})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ARTIFACT_NOT_APPROVED", decodeBody(t, w)["code"])

	// Approve the single step.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/approvals/%s/decisions", requestID), map[string]any{
		"stepOrder": 1,
		"decision":  "APPROVED",
		"comments":  "within budget",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "APPROVED", decodeBody(t, w)["status"])

	// Activate.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/artifacts/%s/actions/activate", id), map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	artifact := decodeBody(t, w)["artifact"].(map[string]any)
	assert.Equal(t, "ACTIVE", artifact["status"])

	// History shows the trail.
	w = doRequest(t, router, http.MethodGet, fmt.Sprintf("/artifacts/%s/history", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decodeBody(t, w)["events"].([]any)
	assert.NotEmpty(t, events)
}

func TestHandlers_DecideConflicts(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/approvals", map[string]any{
		"entityType":   "artifact",
		"entityId":     "a1",
		"decisionType": "POLICY_CHANGE",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	requestID := decodeBody(t, w)["id"].(string)

	// Step 2 before step 1.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/approvals/%s/decisions", requestID), map[string]any{
		"stepOrder": 2,
		"decision":  "APPROVED",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["currentStep"])

	// Approve step 1 twice.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/approvals/%s/decisions", requestID), map[string]any{
		"stepOrder": 1, "decision": "APPROVED",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/approvals/%s/decisions", requestID), map[string]any{
		"stepOrder": 1, "decision": "APPROVED",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "APPROVED", decodeBody(t, w)["stepStatus"])
}

func TestHandlers_WithdrawAndList(t *testing.T) {
	router := newTestRouter(t)
	id := createTestArtifact(t, router, "SPIF-001")

	w := doRequest(t, router, http.MethodPost, fmt.Sprintf("/artifacts/%s/actions/submit", id), map[string]any{
		"decisionType": "SPIF_APPROVAL", "amount": "40000",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	requestID := decodeBody(t, w)["id"].(string)

	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/approvals/%s/withdraw", requestID), map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "WITHDRAWN", decodeBody(t, w)["status"])

	w = doRequest(t, router, http.MethodGet, "/approvals?status=WITHDRAWN", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	assert.Equal(t, float64(1), list["totalSize"])
}

func TestHandlers_ResolveAuthority(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/authority/resolve?decisionType=SPIF_APPROVAL&amount=150000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "SGCC+CFO", body["authority"])

	w = doRequest(t, router, http.MethodGet, "/authority/resolve?decisionType=SPIF_APPROVAL", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(t, router, http.MethodGet, "/authority/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodGet, "/authority/resolve?decisionType=SPIF_APPROVAL&amount=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_ListThresholds(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/authority/thresholds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decodeBody(t, w)["thresholds"].([]any)
	assert.Len(t, all, 9)

	w = doRequest(t, router, http.MethodGet, "/authority/thresholds?decisionType=SPIF_APPROVAL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	spif := decodeBody(t, w)["thresholds"].([]any)
	require.Len(t, spif, 3)
	assert.Equal(t, "SGCC", spif[0].(map[string]any)["authority"])
}

func TestHandlers_Coverage(t *testing.T) {
	router := newTestRouter(t)
	id := createTestArtifact(t, router, "POL-001")

	w := doRequest(t, router, http.MethodGet, fmt.Sprintf("/artifacts/%s/coverage", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	entries := body["entries"].([]any)
	assert.Len(t, entries, 3)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["covered"])
}
