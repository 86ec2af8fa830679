package governance

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with governance API routes: artifact
// lifecycle, approval workflow, authority resolution, coverage, and audit.
// The orchestrator must be fully composed; coverage endpoints return an
// error when no requirement matrix is configured.
func NewRouter(orchestrator *GovernanceOrchestrator, resolver *AuthorityResolver, auditStore *AuditStore) chi.Router {
	r := chi.NewRouter()

	ledger := orchestrator.Ledger()
	workflow := orchestrator.Workflow()

	r.Route("/artifacts", func(r chi.Router) {
		r.Post("/", createArtifactHandler(ledger))
		r.Get("/", listArtifactsHandler(ledger.Store()))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getArtifactHandler(ledger.Store()))
			r.Post("/actions/activate", activateArtifactHandler(ledger))
			r.Post("/actions/archive", archiveArtifactHandler(ledger))
			r.Post("/actions/submit", submitArtifactHandler(orchestrator))
			r.Get("/coverage", evaluateCoverageHandler(orchestrator))
			r.Get("/history", getHistoryHandler(auditStore))
		})
	})

	r.Route("/lineages/{code}", func(r chi.Router) {
		r.Get("/", listLineageHandler(ledger))
		r.Post("/versions", createVersionHandler(ledger))
	})

	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", createApprovalHandler(workflow))
		r.Get("/", listApprovalsHandler(workflow))
		r.Get("/{id}", getApprovalHandler(workflow))
		r.Post("/{id}/decisions", submitDecisionHandler(orchestrator))
		r.Post("/{id}/info", provideInfoHandler(workflow))
		r.Post("/{id}/withdraw", withdrawApprovalHandler(orchestrator))
		r.Post("/{id}/escalate", escalateApprovalHandler(workflow))
	})

	r.Get("/authority/resolve", resolveAuthorityHandler(resolver))
	r.Get("/authority/thresholds", listThresholdsHandler(resolver))
	r.Get("/audit", listAuditHandler(auditStore))

	return r
}
