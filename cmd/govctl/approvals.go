package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage approval requests",
}

var approvalStatus string

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := governanceAPIBase + "/approvals?pageSize=100"
		if approvalStatus != "" {
			path += "&status=" + approvalStatus
		}

		var result struct {
			Requests []struct {
				ID        string `json:"id"`
				EntityRef struct {
					EntityType string `json:"entityType"`
					EntityID   string `json:"entityId"`
				} `json:"entityRef"`
				DecisionType string `json:"decisionType"`
				Amount       string `json:"amount"`
				Status       string `json:"status"`
				SLAStatus    string `json:"slaStatus"`
				CurrentStep  int    `json:"currentStep"`
				RequestedBy  string `json:"requestedBy"`
				DueDate      string `json:"dueDate"`
			} `json:"requests"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list approvals: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Entity", "Decision", "Amount", "Status", "SLA", "Step", "Requester", "Due"}
		rows := make([][]string, 0, len(result.Requests))
		for _, r := range result.Requests {
			entity := fmt.Sprintf("%s/%s", r.EntityRef.EntityType, truncate(r.EntityRef.EntityID, 12))
			rows = append(rows, []string{
				truncate(r.ID, 12),
				entity,
				r.DecisionType,
				r.Amount,
				r.Status,
				r.SLAStatus,
				fmt.Sprintf("%d", r.CurrentStep),
				r.RequestedBy,
				r.DueDate,
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var approvalsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get approval request details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(fmt.Sprintf("%s/approvals/%s", governanceAPIBase, args[0]))
		if err != nil {
			return fmt.Errorf("failed to get approval: %w", err)
		}
		return printOutput(result)
	},
}

var (
	decideStep    int
	decideComment string
)

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve the current step of an approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitDecision(args[0], "APPROVED")
	},
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject the current step of an approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitDecision(args[0], "REJECTED")
	},
}

var approvalsNeedsInfoCmd = &cobra.Command{
	Use:   "needs-info <id>",
	Short: "Ask the requester for clarification on the current step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitDecision(args[0], "NEEDS_INFO")
	},
}

func submitDecision(id, decision string) error {
	client := newClient()

	body := map[string]any{
		"stepOrder": decideStep,
		"decision":  decision,
		"comments":  decideComment,
	}

	var result map[string]any
	path := fmt.Sprintf("%s/approvals/%s/decisions", governanceAPIBase, id)
	if err := client.postJSON(path, body, &result); err != nil {
		return fmt.Errorf("failed to submit decision: %w", err)
	}
	return printOutput(result)
}

var infoComment string

var approvalsInfoCmd = &cobra.Command{
	Use:   "provide-info <id>",
	Short: "Answer a NEEDS_INFO step with clarification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		path := fmt.Sprintf("%s/approvals/%s/info", governanceAPIBase, args[0])
		if err := client.postJSON(path, map[string]any{"comments": infoComment}, &result); err != nil {
			return fmt.Errorf("failed to provide info: %w", err)
		}
		return printOutput(result)
	},
}

var approvalsWithdrawCmd = &cobra.Command{
	Use:   "withdraw <id>",
	Short: "Withdraw a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		path := fmt.Sprintf("%s/approvals/%s/withdraw", governanceAPIBase, args[0])
		if err := client.postJSON(path, map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to withdraw: %w", err)
		}
		return printOutput(result)
	},
}

var approvalsEscalateCmd = &cobra.Command{
	Use:   "escalate <id>",
	Short: "Escalate an overdue request to the next authority tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		path := fmt.Sprintf("%s/approvals/%s/escalate", governanceAPIBase, args[0])
		if err := client.postJSON(path, map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to escalate: %w", err)
		}
		return printOutput(result)
	},
}

func init() {
	approvalsListCmd.Flags().StringVar(&approvalStatus, "status", "", "Filter by status (PENDING, APPROVED, REJECTED, WITHDRAWN)")

	for _, c := range []*cobra.Command{approvalsApproveCmd, approvalsRejectCmd, approvalsNeedsInfoCmd} {
		c.Flags().IntVar(&decideStep, "step", 1, "Step order to decide")
		c.Flags().StringVar(&decideComment, "comment", "", "Decision comment")
	}
	approvalsInfoCmd.Flags().StringVar(&infoComment, "comment", "", "Clarification text")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsGetCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
	approvalsCmd.AddCommand(approvalsNeedsInfoCmd)
	approvalsCmd.AddCommand(approvalsInfoCmd)
	approvalsCmd.AddCommand(approvalsWithdrawCmd)
	approvalsCmd.AddCommand(approvalsEscalateCmd)
}
