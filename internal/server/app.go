// Package server wires the ScanPass server together: storage, the vision
// pipeline, the challenge director and the HTTP and gRPC front ends, and
// runs them until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"github.com/dmitrijs2005/scanpass/internal/server/challenges"
	"github.com/dmitrijs2005/scanpass/internal/server/config"
	"github.com/dmitrijs2005/scanpass/internal/server/decision"
	"github.com/dmitrijs2005/scanpass/internal/server/httpapi"
	"github.com/dmitrijs2005/scanpass/internal/server/modelstore"
	"github.com/dmitrijs2005/scanpass/internal/server/replay"
	"github.com/dmitrijs2005/scanpass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/scanpass/internal/server/services"
	"github.com/dmitrijs2005/scanpass/internal/server/vision"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/embedding"
	"github.com/dmitrijs2005/scanpass/internal/server/vision/motion"
	"github.com/dmitrijs2005/scanpass/internal/server/workers"

	gs "github.com/dmitrijs2005/scanpass/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	director     *challenges.Director
	guard        *replay.Guard
	userService  *services.UserService
	verification *services.VerificationService
}

// fetchModel is a seam for tests.
var fetchModel = func(ctx context.Context, c *config.Config) ([]byte, error) {
	store := modelstore.New(modelstore.S3Config{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	return store.Fetch(ctx, c.ModelURI)
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, dialect, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, dialect dbx.Dialect) (*App, error) {
	if c.UsesDefaultSecret() {
		logger.Warn(ctx, "secret_key is the built-in development default; set SECRET_KEY or --secret-key")
	}

	rm, err := repomanager.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pipeline, err := buildPipeline(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	director := challenges.NewDirector(c.ChallengeTTL, logger, challenges.WithMaxPending(c.MaxPendingChallenges))
	guard := replay.NewGuard(c.ReplayWindow, time.Now)
	decider := decision.NewEngine(decision.Thresholds{
		Similarity: c.SimilarityThreshold,
		Liveness:   c.LivenessThreshold,
	})
	pool := workers.NewPool(c.AnalysisWorkers, c.AnalysisTimeout, logger)

	us := services.NewUserService(db, rm, c, logger)
	vs := services.NewVerificationService(us, director, pipeline, decider, pool, guard,
		services.VerificationOptions{
			MaxVideoBytes:    c.MaxVideoBytes,
			AllowVisualLogin: c.AllowVisualLogin,
		}, logger)

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		director:     director,
		guard:        guard,
		userService:  us,
		verification: vs,
	}, nil
}

// buildPipeline loads the extractor weights and assembles the vision
// pipeline.
func buildPipeline(ctx context.Context, c *config.Config, logger logging.Logger) (*vision.Pipeline, error) {
	artifact, err := fetchModel(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("model load error: %w", err)
	}

	extractor, err := embedding.NewExtractor(artifact, c.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("extractor init error: %w", err)
	}
	if extractor.Dim() != c.EmbeddingDim {
		logger.Warn(ctx, "model dimension differs from embedding_dim", "model_dim", extractor.Dim(), "embedding_dim", c.EmbeddingDim)
	}
	logger.Info(ctx, "feature extractor ready", "model_uri", c.ModelURI, "dim", extractor.Dim())

	engine := embedding.NewEngine(embedding.Config{SampleFrames: c.SampleFrames, MinFrames: c.MinFrames}, extractor)
	analyzer := motion.NewAnalyzer(motion.Config{
		SampleFrames:       c.SampleFrames,
		MinFrames:          c.MinFrames,
		DirectionThreshold: c.DirectionThreshold,
	}, nil)
	return vision.NewPipeline(vision.Config{SampleFrames: c.SampleFrames, MinFrames: c.MinFrames}, engine, analyzer), nil
}

// Handler returns the HTTP API.
func (app *App) Handler() *httpapi.Handler {
	return httpapi.NewHandler(app.userService, app.verification, httpapi.Options{
		MaxVideoBytes:       app.config.MaxVideoBytes,
		RequireSecondFactor: app.config.RequireSecondFactor,
	}, app.logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.Handler())
	s := httpapi.NewServer(app.config.HTTPAddr, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run starts the servers and sweepers and blocks until ctx is cancelled
// or a signal arrives. The database is closed on return.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	interval := app.config.SweepInterval
	tasks := []func(){
		func() { app.startHTTPServer(ctx, cancelFunc) },
		func() { app.startGRPCServer(ctx, cancelFunc) },
		func() { app.director.Run(ctx, interval) },
		func() { app.guard.Run(ctx, interval) },
		func() { app.userService.RunSessionSweeper(ctx, interval) },
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task()
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
