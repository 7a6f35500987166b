package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/auditwise/internal/api"
	"github.com/joescharf/auditwise/internal/daemon"
	"github.com/joescharf/auditwise/internal/output"
)

// stopTimeout bounds graceful shutdown before a stop escalates to SIGKILL.
const stopTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing audit sessions, saved audits, share links,
exports and profiles under /api/v1. By default it listens on port 8080.

Use 'serve start' to run it in the background and 'serve stop' to stop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "auditwise-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "auditwise-serve.log")
}

func serveAddr() string {
	return fmt.Sprintf(":%d", viper.GetInt("server.port"))
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	scanner, err := newScanner()
	if err != nil {
		return err
	}

	auth := api.NewAuthenticator(viper.GetString("auth.jwt_secret"), currentUser())
	apiServer := api.NewServer(s, scanner, auth, api.Config{
		Origin:     viper.GetString("server.public_url"),
		APIKey:     viper.GetString("ai.api_key"),
		FigmaToken: viper.GetString("figma.token"),
		SessionTTL: viper.GetDuration("server.session_ttl"),
	})

	addr := serveAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()
	go apiServer.EvictSessions(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	mode := "single-user"
	if !auth.SingleUser() {
		mode = "JWT"
	}
	ui.Info("Serving API at %s (%s mode)", output.Cyan(daemon.Record{Addr: addr}.URL()+"/api/v1"), mode)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	ui.Info("Shutting down...")
	for _, sess := range apiServer.Sessions().List() {
		_ = apiServer.Sessions().Delete(sess.ID)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if rec, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d) at %s", rec.PID, rec.URL())
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("server.port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %v in the background", exe, args)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(pf.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	rec := daemon.Record{PID: child.Process.Pid, Addr: serveAddr(), StartedAt: time.Now().UTC()}
	if err := pf.WriteRecord(rec); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Server started (PID %d) at %s", rec.PID, output.Cyan(rec.URL()))
	ui.VerboseLog("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", rec.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, running := pf.IsRunning(); !running {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", rec.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not stop within %s, killing", stopTimeout)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	ui.Success("Server killed (PID %d)", rec.PID)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		ui.Info("Server is not running")
		return nil
	}

	ui.Success("Server is running (PID %d) at %s", rec.PID, output.Cyan(rec.URL()))
	if !rec.StartedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Uptime:  %s\n", time.Since(rec.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(ui.Out, "  Logs:    %s\n", serveLogPath())
	return nil
}
