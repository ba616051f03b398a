package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	servechat "github.com/cmuxiao/deepchat/internal/serve/chat"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr string
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat panel",
	Long: `Serve the chat panel on a local address and relay prompts to the
inference service over a websocket.

The page sends with Enter; Shift+Enter inserts a newline. Set serve.token
(or DEEPCHAT_SERVE_TOKEN) to require a bearer token on the websocket.

Examples:
  deepchat serve
  deepchat serve --addr 0.0.0.0:8765 --open=false
  deepchat serve --model llama3.2`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default serve.addr)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", true, "Open the panel in the default browser")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBridge(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := servechat.NewServer(b, servechat.Options{
		Model:          cfg.Model,
		Token:          cfg.Serve.Token,
		MaxInFlight:    cfg.Serve.MaxInFlight,
		AllowedOrigins: cfg.Serve.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpSrv := &http.Server{
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		// Shutdown leaves hijacked websocket connections alone.
		srv.Close()
		return err
	})

	panel := panelURL(ln.Addr(), cfg.Serve.Token)
	logger.Info("serving chat panel", zap.String("addr", ln.Addr().String()), zap.String("model", cfg.Model))
	fmt.Fprintf(cmd.OutOrStdout(), "deepchat panel: %s\n", panel)
	if serveOpen {
		if err := openBrowser(panel); err != nil {
			logger.Warn("could not open browser", zap.Error(err))
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// panelURL is the browser address of the panel. Wildcard listen hosts are
// shown as localhost.
func panelURL(addr net.Addr, token string) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		host, port = addr.String(), ""
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	u := url.URL{Scheme: "http", Host: host, Path: "/"}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	}
	if token != "" {
		u.RawQuery = url.Values{"token": []string{token}}.Encode()
	}
	return u.String()
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
