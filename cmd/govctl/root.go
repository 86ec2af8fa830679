package main

import (
	"os"

	"github.com/spf13/cobra"
)

const governanceAPIBase = "/api/governance/v1alpha1"

var (
	serverURL string
	outputFmt string
	tenant    string
	actor     string
)

var rootCmd = &cobra.Command{
	Use:   "govctl",
	Short: "CLI for the governance server",
	Long: `govctl manages governance artifacts and approval requests.

Artifacts are versioned policy documents with a supersession chain; approvals
route decisions through committee thresholds with per-step SLAs.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Governance server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "Tenant for multi-tenant operations (default: from GOVERNANCE_TENANT env)")
	rootCmd.PersistentFlags().StringVar(&actor, "as", "", "Actor principal sent with mutating requests (default: from GOVERNANCE_ACTOR env)")

	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(authorityCmd)
	rootCmd.AddCommand(auditCmd)
}

// resolvedTenant returns the effective tenant.
// Priority: --tenant flag > GOVERNANCE_TENANT env var > "" (server default).
func resolvedTenant() string {
	if tenant != "" {
		return tenant
	}
	return os.Getenv("GOVERNANCE_TENANT")
}

// resolvedActor returns the effective actor principal.
func resolvedActor() string {
	if actor != "" {
		return actor
	}
	return os.Getenv("GOVERNANCE_ACTOR")
}
