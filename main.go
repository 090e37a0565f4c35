// Command puzzlemap starts the puzzle map server.
//
// It supports these commands:
//  1. "serve" (default): runs the HTTP server exposing the REST API, WebSocket
//     updates and an /mcp HTTP endpoint
//  2. "mcp": runs an MCP stdio server, reusing a running API or starting an
//     internal one on a random loopback port
//  3. "validate": checks level files and exits non-zero when one is broken
//  4. "version"
//
// Settings come from the environment (and a .env file when present); flags
// override them. ngrok tunneling can be enabled for quick external access.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/puzzlemap/api"
	"github.com/wricardo/puzzlemap/game/config"
	"github.com/wricardo/puzzlemap/game/service"
	"github.com/wricardo/puzzlemap/game/session"
	"github.com/wricardo/puzzlemap/transport/mcp"
	"github.com/wricardo/puzzlemap/transport/websocket"
	"github.com/wricardo/puzzlemap/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Puzzle Map Server"
)

const (
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Settings holds the environment defaults for every flag.
type Settings struct {
	Host        string        `env:"HOST"          envDefault:"localhost"`
	Port        int           `env:"PORT"          envDefault:"8080"`
	LevelsDir   string        `env:"LEVELS_DIR"    envDefault:"levels"`
	SessionsDir string        `env:"SESSIONS_DIR"  envDefault:"sessions"`
	Store       string        `env:"SESSION_STORE" envDefault:"file"`
	SessionTTL  time.Duration `env:"SESSION_TTL"   envDefault:"24h"`
	Debug       bool          `env:"DEBUG"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokAuthAlt   string `env:"NGROK_AUTH_TOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// loadSettings parses the environment. NGROK_AUTH_TOKEN is accepted as an
// alias of NGROK_AUTHTOKEN.
func loadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}
	if s.NgrokAuthToken == "" {
		s.NgrokAuthToken = s.NgrokAuthAlt
	}
	return s, nil
}

// options is the resolved configuration of one run.
type options struct {
	Host        string
	Port        int
	LevelsDir   string
	SessionsDir string
	Store       string
	SessionTTL  time.Duration
	Debug       bool
	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		Host:        cmd.String("host"),
		Port:        cmd.Int("port"),
		LevelsDir:   cmd.String("levels-dir"),
		SessionsDir: cmd.String("sessions-dir"),
		Store:       cmd.String("store"),
		SessionTTL:  cmd.Duration("session-ttl"),
		Debug:       cmd.Bool("debug"),
		Ngrok:       cmd.Bool("ngrok"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

// main loads .env, parses the environment and runs the selected command.
func main() {
	// A missing .env file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(settings, os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newApp(s Settings, out io.Writer) *cli.Command {
	serve := func(ctx context.Context, cmd *cli.Command) error {
		opts := optionsFrom(cmd)
		logger, err := newLogger(opts.Debug)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		return runHTTPServer(ctx, opts, logger)
	}

	return &cli.Command{
		Name:    "puzzlemap",
		Usage:   AppName,
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: s.Host, Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Value: s.Port, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "levels-dir", Value: s.LevelsDir, Usage: "directory containing level files"},
			&cli.StringFlag{Name: "sessions-dir", Value: s.SessionsDir, Usage: "directory for persisted sessions"},
			&cli.StringFlag{Name: "store", Value: s.Store, Usage: "session store: file or sqlite"},
			&cli.DurationFlag{Name: "session-ttl", Value: s.SessionTTL, Usage: "evict sessions idle for longer than this"},
			&cli.BoolFlag{Name: "debug", Value: s.Debug, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Value: s.NgrokEnabled, Usage: "enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Value: s.NgrokAuthToken, Usage: "ngrok auth token"},
			&cli.StringFlag{Name: "ngrok-domain", Value: s.NgrokDomain, Usage: "custom ngrok domain"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run the HTTP server with API, WebSocket and MCP endpoint",
				Action:  serve,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFrom(cmd)
					logger, err := newLogger(opts.Debug)
					if err != nil {
						return err
					}
					defer logger.Sync() //nolint:errcheck
					return runStdioMCP(ctx, opts, logger)
				},
			},
			{
				Name:      "validate",
				Usage:     "validate level files",
				ArgsUsage: "[dir]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					dir := cmd.String("levels-dir")
					if cmd.Args().Present() {
						dir = cmd.Args().First()
					}
					results, err := validate.Dir(dir)
					if err != nil {
						return err
					}
					if len(results) == 0 {
						return fmt.Errorf("no level files in %s", dir)
					}
					if !validate.Report(out, results) {
						return errors.New("some levels have errors")
					}
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(out, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// services bundles the managers behind the game service.
type services struct {
	configs  *config.Manager
	sessions *session.Manager
	store    session.SessionPersistence
	game     service.GameService
	close    func() error
}

// Close flushes every session to the store and releases it.
func (s *services) Close() error {
	err := s.sessions.SaveAllSessions()
	if s.close != nil {
		err = errors.Join(err, s.close())
	}
	return err
}

// initializeServices wires the level manager, the session store and the game
// service, then restores persisted sessions.
func initializeServices(opts options, logger *zap.Logger) (*services, error) {
	configs, err := config.NewManager(opts.LevelsDir, logger.Named("levels"))
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	store, closeStore, err := openStore(opts, configs, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	sessions := session.NewManagerWithPersistence(store, logger.Named("sessions"))
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", zap.Error(err))
	}

	return &services{
		configs:  configs,
		sessions: sessions,
		store:    store,
		game:     service.NewGameService(sessions, configs, logger.Named("game")),
		close:    closeStore,
	}, nil
}

func openStore(opts options, configs *config.Manager, logger *zap.Logger) (session.SessionPersistence, func() error, error) {
	switch opts.Store {
	case "", "file":
		fp, err := session.NewFilePersistence(opts.SessionsDir, configs, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		return fp, nil, nil
	case "sqlite":
		sp, err := session.OpenSQLitePersistence(filepath.Join(opts.SessionsDir, "sessions.db"), configs, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session database: %w", err)
		}
		return sp, sp.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q (use file or sqlite)", opts.Store)
	}
}

// startBackground runs the session cleanup, store sync and level watch loops
// until ctx is done.
func (s *services) startBackground(ctx context.Context, wg *sync.WaitGroup, ttl time.Duration, logger *zap.Logger) {
	wg.Add(3)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, s.sessions, cleanupInterval, ttl, logger)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, s.sessions, s.store, syncInterval, logger)
	}()
	go func() {
		defer wg.Done()
		err := s.configs.Watch(ctx, func(id string) {
			logger.Info("level reloaded", zap.String("level", id))
		})
		if err != nil {
			logger.Warn("level watcher stopped", zap.Error(err))
		}
	}()
}

// sessionCleanupRoutine periodically evicts sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				logger.Info("cleaned up expired sessions", zap.Int("count", removed))
			}
		}
	}
}

// filesystemSyncRoutine periodically drops sessions whose stored copy was
// deleted behind the server's back.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, store session.SessionPersistence, interval time.Duration, logger *zap.Logger) {
	if store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncSessions(manager, store, logger); pruned > 0 {
				logger.Info("store sync pruned orphaned sessions", zap.Int("count", pruned))
			}
		}
	}
}

func syncSessions(manager *session.Manager, store session.SessionPersistence, logger *zap.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if store.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory", zap.String("session", sess.ID))
		}
	}
	return pruned
}

// newRouter mounts the REST API at the root and the MCP proxy at /mcp. The
// proxy calls back into the API at baseURL.
func newRouter(game service.GameService, hub *websocket.Hub, baseURL string, logger *zap.Logger) http.Handler {
	router := http.NewServeMux()
	router.Handle("/", api.NewServer(game, hub, logger.Named("api")))
	router.Handle("/mcp", mcp.NewClient(baseURL, logger.Named("mcp")))
	return router
}

// runHTTPServer serves the API, WebSocket hub and /mcp endpoint until ctx is
// cancelled. With ngrok enabled the same router is also served through a
// public tunnel.
func runHTTPServer(ctx context.Context, opts options, logger *zap.Logger) error {
	svc, err := initializeServices(opts, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	svc.startBackground(ctx, &wg, opts.SessionTTL, logger)

	hub := websocket.NewHub(logger.Named("ws"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	addr := opts.addr()
	router := newRouter(svc.game, hub, "http://"+addr, logger)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", "http://"+addr+"/api"),
			zap.String("ws", "ws://"+addr+"/ws?session=<session_id>"),
			zap.String("mcp", "http://"+addr+"/mcp"),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if opts.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, opts, router, logger.Named("ngrok"))
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	if err := svc.Close(); err != nil {
		logger.Warn("failed to save sessions on shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return runErr
}

func runNgrok(ctx context.Context, opts options, handler http.Handler, logger *zap.Logger) {
	if opts.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if opts.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"),
	)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// apiAvailable reports whether an API server answers health checks at baseURL.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the API on a random loopback port and returns its
// base URL and a shutdown function.
func startInternalAPI(ctx context.Context, game service.GameService, logger *zap.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	ctx, cancel := context.WithCancel(ctx)
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(game, hub, logger.Named("api"))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("internal HTTP server error", zap.Error(err))
		}
	}()

	stop := func() {
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}
	return baseURL, stop, nil
}

// runStdioMCP serves MCP over stdio. It reuses an API already listening on
// the configured address; otherwise it starts an internal one.
func runStdioMCP(ctx context.Context, opts options, logger *zap.Logger) error {
	baseURL := "http://" + opts.addr()

	if apiAvailable(ctx, baseURL) {
		logger.Info("using external API server", zap.String("url", baseURL))
	} else {
		svc, err := initializeServices(opts, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("failed to save sessions on shutdown", zap.Error(err))
			}
		}()

		var stop func()
		baseURL, stop, err = startInternalAPI(ctx, svc.game, logger)
		if err != nil {
			return err
		}
		defer stop()
		logger.Info("started internal API server", zap.String("url", baseURL))
	}

	client := mcp.NewClient(baseURL, logger.Named("mcp"))
	logger.Info("MCP stdio server ready")
	return client.ServeStdio()
}
