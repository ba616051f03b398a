package cmd

import (
	"fmt"
	"os"

	"github.com/cmuxiao/deepchat/internal/config"
	"github.com/cmuxiao/deepchat/internal/exitcode"
	"github.com/cmuxiao/deepchat/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Command annotations read by the root PersistentPreRunE.
const (
	annotationNoConfig    = "deepchat/no-config"
	annotationInteractive = "deepchat/interactive"
)

var (
	configPath   string
	providerFlag string
	modelFlag    string
	verbose      bool

	cfg    *config.Config
	logger = zap.NewNop()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/deepchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Inference provider (ollama, openai_compat)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model identifier sent with every request")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "deepchat",
	Short: "Chat with a locally running language model",
	Long: `deepchat opens a chat panel in the browser or the terminal and streams
replies from a local inference service (Ollama by default, or any
OpenAI-compatible server).

Examples:
  deepchat serve                     # web panel on http://127.0.0.1:8765
  deepchat chat                      # terminal panel
  deepchat chat --remote localhost:8765
  deepchat ask "Why is the sky blue?"
  deepchat models                    # models of the inference service
  deepchat config init               # write a config file with defaults`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotationNoConfig] == "true" {
			return nil
		}
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		// The terminal panel owns the screen; only log to a file there.
		if cmd.Annotations[annotationInteractive] == "true" && cfg.Log.File == "" {
			return nil
		}
		l, err := logging.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.FromError(err))
	}
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	loaded.ApplyOverrides(providerFlag, modelFlag)
	return loaded, nil
}
