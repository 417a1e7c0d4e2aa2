package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/events"
	"github.com/ayusman/hajira/internal/hook"
	"github.com/ayusman/hajira/internal/server"
	"github.com/ayusman/hajira/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the kiosk web server. The live annotated camera feed is served at
/api/stream, events at /api/events and the dashboard from the static dir.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides HAJIRA_HTTP_ADDR)")
	serveCmd.Flags().Bool("tray", false, "Show a system tray icon to control the kiosk")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	withTray, _ := cmd.Flags().GetBool("tray")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(64)
	a, st, err := app.Build(ctx, cfg, hub, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	defer a.Close()

	if cfg.MQTT.Host != "" {
		pub, err := events.NewMQTTClient(events.MQTTConfig{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			Username: cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			logger.Warn("mqtt disabled", zap.Error(err))
		} else {
			defer pub.Close()
			go events.NewForwarder(hub, pub, cfg.MQTT.Topic, logger.Named("mqtt")).Run(ctx)
			logger.Info("forwarding events to mqtt", zap.String("host", cfg.MQTT.Host))
		}
	}

	hooks := hook.NewManager(cfg.HooksDir, logger.Named("hook"))
	if err := hooks.Discover(); err != nil {
		logger.Warn("hook discovery failed", zap.String("dir", cfg.HooksDir), zap.Error(err))
	} else if found := hooks.List(); len(found) > 0 {
		go hook.NewRunner(hooks, hook.NewExecutor(cfg.HookTimeout), logger.Named("hook")).Run(ctx, hub)
		logger.Info("running event hooks", zap.Int("count", len(found)))
	}

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.StaticDir),
		App:       a,
		Logger:    logger.Named("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.HTTPAddr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var t *tray.Tray
	if withTray {
		t = tray.New()
		t.OnToggle(a.SetEnabled)
		t.OnOpen(func() { openBrowser(dashboardURL(cfg.HTTPAddr), logger) })
		t.OnQuit(cancel)
		go t.Follow(ctx, hub)
		go func() {
			waitForStop(ctx, sig, errCh, logger)
			cancel()
			t.Quit()
		}()
		// The tray owns the main thread until it quits.
		t.Run()
	} else {
		waitForStop(ctx, sig, errCh, logger)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func waitForStop(ctx context.Context, sig <-chan os.Signal, errCh chan error, logger *zap.Logger) {
	select {
	case <-ctx.Done():
	case s := <-sig:
		logger.Info("shutting down", zap.Stringer("signal", s))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
		// Put it back for runServe to report.
		errCh <- err
	}
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *zap.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("open browser", zap.Error(err))
	}
}

// findWebDir returns preferred when it exists, otherwise the first existing
// directory among "web", "../web" and ~/.hajira/web.
func findWebDir(preferred string) string {
	candidates := []string{preferred, "web", "../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, home+"/.hajira/web")
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

var errMissingFlag = errors.New("missing required flag")
