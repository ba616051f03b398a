package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cmuxiao/deepchat/internal/tui/chat"
	"github.com/cmuxiao/deepchat/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	chatRemote string
	chatToken  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the terminal chat panel",
	Long: `Start the chat panel in the terminal.

By default prompts go straight to the inference service. With --remote the
panel attaches to a running "deepchat serve" instead.

Examples:
  deepchat chat
  deepchat chat --model qwen2.5:7b
  deepchat chat --remote localhost:8765 --token s3cret

Keyboard shortcuts:
  Enter              - Send message
  Alt+Enter, Ctrl+J  - Insert newline
  Esc                - Stop the response
  Ctrl+L             - Clear conversation
  Ctrl+C             - Quit`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationInteractive: "true"},
	RunE:        runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatRemote, "remote", "", "URL of a deepchat serve instance to attach to")
	chatCmd.Flags().StringVar(&chatToken, "token", "", "Bearer token for --remote (default serve.token)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(`chat needs an interactive terminal; use "deepchat ask" for pipes`)
	}
	ctx := cmd.Context()

	var backend chat.StreamBackend
	title := "deepchat"
	if chatRemote != "" {
		token := chatToken
		if token == "" {
			token = cfg.Serve.Token
		}
		remote, err := chat.NewRemoteBackend(ctx, chatRemote, token)
		if err != nil {
			return err
		}
		backend = remote
		title = "deepchat @ " + chatRemote
	} else {
		b, err := newBridge(cfg, logger)
		if err != nil {
			return err
		}
		backend = chat.NewLocalBackend(b)
	}
	defer backend.Close()

	model := chat.New(ctx, backend, chat.Options{
		Title:     title,
		ModelName: cfg.Model,
		Styles:    ui.NewStyles(os.Stdout),
	})
	logger.Debug("starting terminal panel", zap.String("remote", chatRemote))

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
