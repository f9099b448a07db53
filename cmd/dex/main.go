package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/dex-client/internal/render"
	"github.com/Sternrassler/dex-client/internal/tui"
	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/Sternrassler/dex-client/pkg/client"
	"github.com/Sternrassler/dex-client/pkg/loader"
	"github.com/Sternrassler/dex-client/pkg/logging"
	"github.com/Sternrassler/dex-client/pkg/metrics"
	"github.com/Sternrassler/dex-client/pkg/ratelimit"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Globals are the flags shared by every command.
type Globals struct {
	BaseURL     string  `help:"Catalog API root." env:"DEX_BASE_URL" default:"${base_url}"`
	UserAgent   string  `help:"User-Agent sent with every request." env:"DEX_USER_AGENT" default:"dex-client/0.1.0"`
	LogLevel    string  `help:"Log level." enum:"debug,info,warn,error,disabled" env:"DEX_LOG_LEVEL" default:"info"`
	LogPretty   bool    `help:"Human-readable log output."`
	LogFile     string  `help:"Append logs to this file instead of stderr." type:"path"`
	RedisAddr   string  `help:"Redis address for a shared rate limit store." env:"DEX_REDIS_ADDR"`
	MetricsAddr string  `help:"Serve Prometheus metrics on this address." env:"DEX_METRICS_ADDR"`
	RPS         float64 `name:"rps" help:"Outbound requests per second, 0 for unpaced." default:"0"`
}

// CLI is the top-level command structure for dex.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	Browse  BrowseCmd        `cmd:"" default:"1" help:"Browse the catalog interactively."`
	List    ListCmd          `cmd:"" help:"Print catalog pages as plain text."`
	Types   TypesCmd         `cmd:"" help:"List the selectable types."`
}

// BrowseCmd opens the interactive browser.
type BrowseCmd struct {
	NoTUI bool `help:"Force plain text output even if stdout is a TTY."`
}

// ListCmd prints pages of the catalog.
type ListCmd struct {
	Pages    int    `help:"Number of pages to load." default:"1"`
	Search   string `help:"Only show items whose name contains this text, or whose number matches."`
	Category string `help:"Only show items of this type."`
}

// TypesCmd prints the selectable types.
type TypesCmd struct{}

// session holds the wiring shared by the commands.
type session struct {
	logger  zerolog.Logger
	api     *catalog.API
	client  *client.Client
	redis   *redis.Client
	metrics *metrics.Server
	logFile *os.File
}

// open builds the client stack from the global flags. When quiet is set and
// no log file is given, logging is disabled so it cannot disturb the screen.
func (g *Globals) open(ctx context.Context, quiet bool) (*session, error) {
	s := &session{}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(g.LogLevel)
	logCfg.Pretty = g.LogPretty
	switch {
	case g.LogFile != "":
		f, err := logging.OpenFile(g.LogFile)
		if err != nil {
			return nil, err
		}
		s.logFile = f
		logCfg.Output = f
	case quiet:
		logCfg.Level = logging.LevelDisabled
	}
	s.logger = logging.Setup(logCfg)

	cfg := client.DefaultConfig(g.UserAgent)
	cfg.RequestsPerSecond = g.RPS

	if g.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: g.RedisAddr})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", g.RedisAddr, err)
		}
		s.logger.Info().Str("addr", g.RedisAddr).Msg("Connected to Redis")
		cfg.Tracker = ratelimit.NewTracker(ratelimit.NewRedisStore(s.redis), logging.NewLogger("ratelimit"))
	}

	c, err := client.New(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = c
	s.api = catalog.NewAPI(c, g.BaseURL)

	if g.MetricsAddr != "" {
		srv, err := metrics.Listen(g.MetricsAddr, s.logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.metrics = srv
		go func() {
			if err := srv.Serve(); err != nil {
				s.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	return s, nil
}

// Close releases everything open opened.
func (s *session) Close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		cancel()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
}

// Run executes the browse command.
func (b *BrowseCmd) Run(g *Globals) error {
	if b.NoTUI || !logging.IsTerminal(os.Stdout) {
		return (&ListCmd{Pages: 1}).Run(g)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := g.open(ctx, true)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer s.Close()

	renderer := tui.NewProgramRenderer()
	ctrl, err := loader.New(loader.DefaultConfig(), loader.Deps{
		API:      s.api,
		Renderer: renderer,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer ctrl.Close()

	prog := tea.NewProgram(tui.NewModel(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	renderer.Attach(prog)

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}

// Run executes the list command.
func (l *ListCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := g.open(ctx, false)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	defer s.Close()

	if err := runList(ctx, s.api, os.Stdout, l, s.logger); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	return nil
}

// runList loads up to l.Pages pages and prints them to w.
func runList(ctx context.Context, api loader.API, w io.Writer, l *ListCmd, logger zerolog.Logger) error {
	if l.Pages <= 0 {
		return fmt.Errorf("pages must be > 0 (got %d)", l.Pages)
	}

	text := render.NewText(w, render.WithStatus())
	ctrl, err := loader.New(loader.DefaultConfig(), loader.Deps{
		API:      api,
		Renderer: text,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if l.Search != "" || l.Category != "" {
		ctrl.SetFilters(ctx, l.Search, l.Category)
	} else {
		ctrl.RequestLoad(ctx)
	}

	for page := 1; page < l.Pages; page++ {
		snap := ctrl.Snapshot()
		if snap.LastErr != nil || snap.Exhausted {
			break
		}
		ctrl.RequestLoad(ctx)
	}

	if err := ctrl.Snapshot().LastErr; err != nil {
		return err
	}
	return nil
}

// Run executes the types command.
func (t *TypesCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := g.open(ctx, false)
	if err != nil {
		return fmt.Errorf("types: %w", err)
	}
	defer s.Close()

	return printTypes(ctx, s.api, os.Stdout)
}

// categoryLister is the part of the catalog API the types command uses.
type categoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

func printTypes(ctx context.Context, api categoryLister, w io.Writer) error {
	categories, err := api.Categories(ctx)
	if err != nil {
		return fmt.Errorf("types: %w", err)
	}
	for _, name := range categories {
		fmt.Fprintln(w, name)
	}
	return nil
}

func vars() kong.Vars {
	return kong.Vars{
		"version":  version + " " + commit + " " + date,
		"base_url": catalog.DefaultBaseURL,
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dex"),
		kong.Description("Browse the creature catalog page by page."),
		vars(),
		kong.Bind(&cli.Globals),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
