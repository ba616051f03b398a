package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cmuxiao/deepchat/internal/llm"
	"github.com/cmuxiao/deepchat/internal/ui"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the inference service",
	Long: `List the models the configured inference service can run.

Examples:
  deepchat models
  deepchat models --provider openai_compat
  deepchat models --json`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

func runModels(cmd *cobra.Command, args []string) error {
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return err
	}
	lister, ok := provider.(llm.ModelLister)
	if !ok {
		return fmt.Errorf("provider %s does not support model listing", provider.Name())
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	models, err := lister.ListModels(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return fmt.Errorf("cannot connect to %s.\n"+
				"Make sure the server is running and accessible.\n\n"+
				"For Ollama: run 'ollama serve'", provider.Name())
		}
		return fmt.Errorf("failed to list models: %w", err)
	}
	return printModels(cmd.OutOrStdout(), provider.Name(), cfg.Model, models, modelsJSON)
}

func printModels(w io.Writer, providerName, current string, models []llm.ModelInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if models == nil {
			models = []llm.ModelInfo{}
		}
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "No models found.")
		return nil
	}

	fmt.Fprintf(w, "Available models from %s:\n\n", providerName)
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, ui.Truncate(m.ID, 60))
		if m.Details != "" {
			line += fmt.Sprintf(" (%s)", m.Details)
		}
		if m.Size > 0 {
			line += fmt.Sprintf("  %.1f GB", float64(m.Size)/1e9)
		}
		fmt.Fprintln(w, line)
		if m.Created > 0 {
			fmt.Fprintf(w, "    Released: %s\n", time.Unix(m.Created, 0).UTC().Format("2006-01-02"))
		}
	}

	fmt.Fprintf(w, "\nTo use a model, pass --model <name> or set model: in your config.\n")
	return nil
}
