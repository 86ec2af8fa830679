package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Manage versioned governance artifacts",
}

var (
	artifactKind     string
	artifactStatus   string
	artifactTitle    string
	artifactCategory string
	contentFile      string
	versionBump      string
	submitType       string
	submitAmount     string
)

type artifactView struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Version  string `json:"version"`
	Status   string `json:"status"`
	Category string `json:"category"`
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := governanceAPIBase + "/artifacts?pageSize=100"
		if artifactKind != "" {
			path += "&kind=" + artifactKind
		}
		if artifactStatus != "" {
			path += "&status=" + artifactStatus
		}

		var result struct {
			Artifacts []artifactView `json:"artifacts"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list artifacts: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Code", "Kind", "Version", "Status", "Title"}
		rows := make([][]string, 0, len(result.Artifacts))
		for _, a := range result.Artifacts {
			rows = append(rows, []string{
				truncate(a.ID, 12), a.Code, a.Kind, a.Version, a.Status, truncate(a.Title, 40),
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var artifactsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get one artifact version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		result, err := client.getRaw(fmt.Sprintf("%s/artifacts/%s", governanceAPIBase, args[0]))
		if err != nil {
			return fmt.Errorf("failed to get artifact: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "Create a new artifact lineage at version 1.0.0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		content, err := readContentFile()
		if err != nil {
			return err
		}

		body := map[string]any{
			"code":     args[0],
			"kind":     artifactKind,
			"title":    artifactTitle,
			"category": artifactCategory,
			"content":  content,
		}

		var result map[string]any
		if err := client.postJSON(governanceAPIBase+"/artifacts", body, &result); err != nil {
			return fmt.Errorf("failed to create artifact: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsLineageCmd = &cobra.Command{
	Use:   "lineage <code>",
	Short: "List every version of a lineage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Artifacts []artifactView `json:"artifacts"`
		}
		if err := client.getJSON(fmt.Sprintf("%s/lineages/%s", governanceAPIBase, args[0]), &result); err != nil {
			return fmt.Errorf("failed to list lineage: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Version", "Status", "Title"}
		rows := make([][]string, 0, len(result.Artifacts))
		for _, a := range result.Artifacts {
			rows = append(rows, []string{truncate(a.ID, 12), a.Version, a.Status, truncate(a.Title, 40)})
		}
		printTable(headers, rows)
		return nil
	},
}

var artifactsVersionCmd = &cobra.Command{
	Use:   "version <code>",
	Short: "Fork the latest version of a lineage into a new DRAFT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		changes := map[string]any{}
		if artifactTitle != "" {
			changes["title"] = artifactTitle
		}
		if artifactCategory != "" {
			changes["category"] = artifactCategory
		}
		if contentFile != "" {
			content, err := readContentFile()
			if err != nil {
				return err
			}
			changes["content"] = content
		}

		body := map[string]any{
			"bump":    versionBump,
			"changes": changes,
		}

		var result map[string]any
		path := fmt.Sprintf("%s/lineages/%s/versions", governanceAPIBase, args[0])
		if err := client.postJSON(path, body, &result); err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsSubmitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Submit an artifact for approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{"decisionType": submitType}
		if submitAmount != "" {
			body["amount"] = submitAmount
		}

		var result map[string]any
		path := fmt.Sprintf("%s/artifacts/%s/actions/submit", governanceAPIBase, args[0])
		if err := client.postJSON(path, body, &result); err != nil {
			return fmt.Errorf("failed to submit artifact: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Activate an APPROVED artifact, superseding the current ACTIVE version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		path := fmt.Sprintf("%s/artifacts/%s/actions/activate", governanceAPIBase, args[0])
		if err := client.postJSON(path, map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to activate artifact: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result map[string]any
		path := fmt.Sprintf("%s/artifacts/%s/actions/archive", governanceAPIBase, args[0])
		if err := client.postJSON(path, map[string]any{}, &result); err != nil {
			return fmt.Errorf("failed to archive artifact: %w", err)
		}
		return printOutput(result)
	},
}

var artifactsCoverageCmd = &cobra.Command{
	Use:   "coverage <id>",
	Short: "Grade an artifact against the requirement matrix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Entries []struct {
				RequirementID string `json:"requirementId"`
				Name          string `json:"name"`
				Grade         string `json:"grade"`
				Status        string `json:"status"`
			} `json:"entries"`
			Summary struct {
				Covered           int `json:"covered"`
				NeedsWork         int `json:"needsWork"`
				Missing           int `json:"missing"`
				CompletenessScore int `json:"completenessScore"`
			} `json:"summary"`
		}
		path := fmt.Sprintf("%s/artifacts/%s/coverage", governanceAPIBase, args[0])
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to evaluate coverage: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Requirement", "Name", "Grade", "Status"}
		rows := make([][]string, 0, len(result.Entries))
		for _, e := range result.Entries {
			rows = append(rows, []string{e.RequirementID, truncate(e.Name, 40), e.Grade, e.Status})
		}
		printTable(headers, rows)
		fmt.Printf("Covered: %d  Needs work: %d  Missing: %d  Score: %d%%\n",
			result.Summary.Covered, result.Summary.NeedsWork, result.Summary.Missing, result.Summary.CompletenessScore)
		return nil
	},
}

var artifactsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the audit trail for an artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		result, err := client.getRaw(fmt.Sprintf("%s/artifacts/%s/history", governanceAPIBase, args[0]))
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		return printOutput(result)
	},
}

func readContentFile() (string, error) {
	if contentFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(contentFile)
	if err != nil {
		return "", fmt.Errorf("read content file: %w", err)
	}
	return string(data), nil
}

func init() {
	artifactsListCmd.Flags().StringVar(&artifactKind, "kind", "", "Filter by kind (policy, document, framework)")
	artifactsListCmd.Flags().StringVar(&artifactStatus, "status", "", "Filter by status")

	artifactsCreateCmd.Flags().StringVar(&artifactKind, "kind", "policy", "Artifact kind (policy, document, framework)")
	artifactsCreateCmd.Flags().StringVar(&artifactTitle, "title", "", "Artifact title")
	artifactsCreateCmd.Flags().StringVar(&artifactCategory, "category", "", "Artifact category")
	artifactsCreateCmd.Flags().StringVar(&contentFile, "content-file", "", "Path to artifact content")
	_ = artifactsCreateCmd.MarkFlagRequired("title")

	artifactsVersionCmd.Flags().StringVar(&versionBump, "bump", "patch", "Version bump (major, minor, patch)")
	artifactsVersionCmd.Flags().StringVar(&artifactTitle, "title", "", "Override title")
	artifactsVersionCmd.Flags().StringVar(&artifactCategory, "category", "", "Override category")
	artifactsVersionCmd.Flags().StringVar(&contentFile, "content-file", "", "Path to replacement content")

	artifactsSubmitCmd.Flags().StringVar(&submitType, "decision-type", "", "Decision type (POLICY_CHANGE, SPIF_APPROVAL, ...)")
	artifactsSubmitCmd.Flags().StringVar(&submitAmount, "amount", "", "Monetary amount, if applicable")
	_ = artifactsSubmitCmd.MarkFlagRequired("decision-type")

	artifactsCmd.AddCommand(artifactsListCmd)
	artifactsCmd.AddCommand(artifactsGetCmd)
	artifactsCmd.AddCommand(artifactsCreateCmd)
	artifactsCmd.AddCommand(artifactsLineageCmd)
	artifactsCmd.AddCommand(artifactsVersionCmd)
	artifactsCmd.AddCommand(artifactsSubmitCmd)
	artifactsCmd.AddCommand(artifactsActivateCmd)
	artifactsCmd.AddCommand(artifactsArchiveCmd)
	artifactsCmd.AddCommand(artifactsCoverageCmd)
	artifactsCmd.AddCommand(artifactsHistoryCmd)
}
