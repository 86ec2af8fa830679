package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Resolve decision authorities",
}

var resolveAmount string

var authorityResolveCmd = &cobra.Command{
	Use:   "resolve <decision-type>",
	Short: "Resolve the committee with authority over a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		q := url.Values{}
		q.Set("decisionType", args[0])
		if resolveAmount != "" {
			q.Set("amount", resolveAmount)
		}

		var result struct {
			Authority string `json:"authority"`
			Threshold struct {
				AmountMin    string `json:"amountMin"`
				AmountMax    string `json:"amountMax"`
				TimelineDays int    `json:"timelineDays"`
			} `json:"threshold"`
		}
		if err := client.getJSON(governanceAPIBase+"/authority/resolve?"+q.Encode(), &result); err != nil {
			return fmt.Errorf("failed to resolve authority: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		fmt.Printf("Authority: %s\nTimeline:  %d days\n", result.Authority, result.Threshold.TimelineDays)
		return nil
	},
}

var thresholdsDecisionType string

var authorityThresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "List the decision threshold table",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := governanceAPIBase + "/authority/thresholds"
		if thresholdsDecisionType != "" {
			path += "?decisionType=" + url.QueryEscape(thresholdsDecisionType)
		}

		var result struct {
			Thresholds []struct {
				DecisionType string `json:"decisionType"`
				AmountMin    string `json:"amountMin"`
				AmountMax    string `json:"amountMax"`
				Authority    string `json:"authority"`
				TimelineDays int    `json:"timelineDays"`
			} `json:"thresholds"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list thresholds: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Decision", "Min", "Max", "Authority", "Timeline"}
		rows := make([][]string, 0, len(result.Thresholds))
		for _, t := range result.Thresholds {
			max := t.AmountMax
			if max == "" {
				max = "-"
			}
			min := t.AmountMin
			if min == "" {
				min = "0"
			}
			rows = append(rows, []string{t.DecisionType, min, max, t.Authority, fmt.Sprintf("%dd", t.TimelineDays)})
		}
		printTable(headers, rows)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Events []struct {
				EventType string `json:"eventType"`
				Actor     string `json:"actor"`
				EntityID  string `json:"entityId"`
				Outcome   string `json:"outcome"`
				CreatedAt string `json:"createdAt"`
			} `json:"events"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON(governanceAPIBase+"/audit?pageSize=100", &result); err != nil {
			return fmt.Errorf("failed to list audit events: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Event", "Actor", "Entity", "Outcome", "At"}
		rows := make([][]string, 0, len(result.Events))
		for _, e := range result.Events {
			rows = append(rows, []string{e.EventType, e.Actor, truncate(e.EntityID, 12), e.Outcome, e.CreatedAt})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

func init() {
	authorityResolveCmd.Flags().StringVar(&resolveAmount, "amount", "", "Monetary amount, if applicable")
	authorityThresholdsCmd.Flags().StringVar(&thresholdsDecisionType, "decision-type", "", "Filter by decision type")
	authorityCmd.AddCommand(authorityResolveCmd)
	authorityCmd.AddCommand(authorityThresholdsCmd)
}
