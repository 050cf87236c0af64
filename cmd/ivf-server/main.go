package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ivf/ivf/internal/config"
	"github.com/ivf/ivf/internal/domain/cycle"
	"github.com/ivf/ivf/internal/domain/embryology"
	"github.com/ivf/ivf/internal/platform/auth"
	"github.com/ivf/ivf/internal/platform/db"
	"github.com/ivf/ivf/internal/platform/middleware"
	"github.com/ivf/ivf/internal/platform/telemetry"
	"github.com/ivf/ivf/migrations"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "ivf-server",
		Short:        "IVF embryology and cycle API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(gradeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "ivf-server").Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the IVF API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServer(cfg)
		},
	}
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// gradeCmd classifies one observation given on the command line, without a
// database, and prints the result as JSON.
func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a single embryo observation",
		Example: "  ivf-server grade --day 3 --cell-count 8 --fragmentation 5 --symmetry equal\n" +
			"  ivf-server grade --day 5 --expansion 4 --icm A --te B",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := gradeRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			obs, err := req.Observation()
			if err != nil {
				return err
			}
			res, err := embryology.NewService(nil).Grade(obs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.Int("day", 0, "culture day (0-6)")
	f.Int("cell-count", 0, "blastomere count (cleavage stage)")
	f.Float64("fragmentation", 0, "fragmentation percent (cleavage stage)")
	f.String("symmetry", "", "equal, unequal or severe")
	f.Int("expansion", 0, "Gardner expansion 1-6 (blastocyst stage)")
	f.String("icm", "", "inner cell mass grade A, B or C")
	f.String("te", "", "trophectoderm grade A, B or C")
	f.String("grade", "", "manual grade, used for morula embryos")
	f.String("quality", "", "quality used when the rules cannot derive one")
	return cmd
}

// gradeRequestFromFlags copies only the flags the user set, so an omitted
// flag stays nil rather than becoming a zero measurement.
func gradeRequestFromFlags(cmd *cobra.Command) (embryology.GradeRequest, error) {
	f := cmd.Flags()
	var req embryology.GradeRequest

	if f.Changed("day") {
		v, _ := f.GetInt("day")
		req.Day = &v
	}
	if f.Changed("cell-count") {
		v, _ := f.GetInt("cell-count")
		req.CellCount = &v
	}
	if f.Changed("fragmentation") {
		v, _ := f.GetFloat64("fragmentation")
		req.FragmentationPercent = &v
	}
	if f.Changed("symmetry") {
		v, _ := f.GetString("symmetry")
		s := embryology.Symmetry(v)
		req.Symmetry = &s
	}
	if f.Changed("expansion") {
		v, _ := f.GetInt("expansion")
		req.Expansion = &v
	}
	if f.Changed("icm") {
		v, _ := f.GetString("icm")
		g := embryology.GradeLetter(v)
		req.ICMGrade = &g
	}
	if f.Changed("te") {
		v, _ := f.GetString("te")
		g := embryology.GradeLetter(v)
		req.TEGrade = &g
	}
	req.Grade, _ = f.GetString("grade")
	q, _ := f.GetString("quality")
	req.Quality = embryology.Quality(q)
	if req.Quality != "" && !req.Quality.IsValid() {
		return req, fmt.Errorf("invalid quality: %s", q)
	}
	return req, nil
}

// newServer builds the HTTP server. pool may be nil, in which case the
// health check reports the database as not configured and only the
// storage-free grading preview is mounted under /api/v1.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "ivf-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
	})

	// Global middleware. Metrics wraps Logger so it sees the final status
	// after Logger has written any error response.
	e.Use(middleware.RequestID(logger))
	e.Use(tp.MetricsMiddleware())
	e.Use(middleware.Logger())
	e.Use(middleware.Recovery())
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, auth.AuthSkipper))

	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth mode: every request runs as admin")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	e.Use(middleware.Audit(logger.With().Str("component", "audit").Logger()))

	var pinger db.Pinger
	if pool != nil {
		pinger = pool
	}
	e.GET("/health", db.HealthHandler(pinger))
	if tp.Enabled() {
		e.GET("/metrics", tp.PrometheusHandler())
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	if pool == nil {
		logger.Warn().Msg("no database pool: only the grading preview is served")
		grader := embryology.NewService(nil)
		grader.SetMetrics(tp)
		embryology.NewHandler(grader).RegisterGradeRoute(apiV1)
		return e
	}
	apiV1.Use(db.ConnMiddleware(pool))

	tx := db.NewTransactor(pool)
	embryoSvc := embryology.NewService(embryology.NewEmbryoRepoPG(pool))
	embryoSvc.SetMetrics(tp)
	embryoSvc.SetTransactor(tx)
	cycleSvc := cycle.NewService(cycle.NewCycleRepoPG(pool), embryoSvc, cycle.Policy(cfg.CycleTransitionPolicy))
	cycleSvc.SetMetrics(tp)
	cycleSvc.SetTransactor(tx)

	cycle.NewHandler(cycleSvc).RegisterRoutes(apiV1)
	embryology.NewHandler(embryoSvc).RegisterRoutes(apiV1)

	return e
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg, os.Stdout)

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := newServer(cfg, pool, logger)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("version", version).
			Str("auth_mode", cfg.ResolvedAuthMode()).
			Str("transition_policy", cfg.CycleTransitionPolicy).
			Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
