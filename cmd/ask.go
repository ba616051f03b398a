package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/exitcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt and stream the reply",
	Long: `Send one prompt to the inference service and stream the reply to stdout.

With no arguments the prompt is read from stdin.

Examples:
  deepchat ask "What is the capital of France?"
  git diff | deepchat ask
  deepchat ask --model llama3.2 "Summarize RFC 9110 in one line"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	b, err := newBridge(cfg, logger)
	if err != nil {
		return err
	}

	w := &deltaWriter{out: cmd.OutOrStdout()}
	_, err = b.Relay(ctx, bridge.Request{ID: bridge.NewID(), Prompt: prompt}, w.Emit)
	return askResult(err)
}

// readPrompt joins args, or reads stdin when there are none and it is not
// a terminal.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return nonEmptyPrompt(strings.Join(args, " "))
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("a prompt is required: deepchat ask \"...\" or pipe it on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return nonEmptyPrompt(string(data))
}

func nonEmptyPrompt(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("prompt is empty")
	}
	return s, nil
}

// askResult maps a relay error onto the process exit code. Cobra prints
// the message with its own "Error: " prefix.
func askResult(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return exitcode.Cancel()
	}
	return exitcode.Failed(err.Error())
}

// deltaWriter prints cumulative relay text as it grows.
type deltaWriter struct {
	out     io.Writer
	printed int
	last    byte
}

// Emit satisfies bridge.Emitter.
func (w *deltaWriter) Emit(u bridge.Update) {
	switch u.Kind {
	case bridge.KindUpdate:
		w.write(u.Text)
	case bridge.KindDone:
		w.write(u.Text)
		w.finish()
	case bridge.KindError:
		w.finish()
	}
}

func (w *deltaWriter) write(full string) {
	if len(full) <= w.printed {
		return
	}
	delta := full[w.printed:]
	_, _ = io.WriteString(w.out, delta)
	w.printed = len(full)
	w.last = delta[len(delta)-1]
}

func (w *deltaWriter) finish() {
	if w.printed > 0 && w.last != '\n' {
		_, _ = io.WriteString(w.out, "\n")
		w.last = '\n'
	}
}
