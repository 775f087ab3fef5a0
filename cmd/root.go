package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/config"
	"github.com/camden-git/facesys/database"
	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/logger"
	"github.com/camden-git/facesys/media"
	"github.com/camden-git/facesys/metrics"
	"github.com/camden-git/facesys/models"
	"github.com/camden-git/facesys/repository"
	"github.com/camden-git/facesys/services"
)

var (
	logMode   string
	threshold float64
)

var rootCmd = &cobra.Command{
	Use:   "facesys",
	Short: "Face identity resolution for a local photo library",
	Long: `facesys detects faces in library images, groups them into identities
and keeps every face record labelled with the person it belongs to.
Unrecognized faces get an Unknown_ label that can later be renamed or
merged into a named person.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "Logger mode: development or production (overrides LOG_MODE)")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0, "Similarity threshold (overrides SIMILARITY_THRESHOLD)")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}

// app is the wired pipeline shared by every command.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	db       *gorm.DB
	store    *repository.Store
	service  *services.FaceRecognitionService
	metrics  *metrics.PipelineMetrics
	registry *prometheus.Registry
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logMode != "" {
		cfg.LogMode = logMode
	}
	if threshold != 0 {
		cfg.SimilarityThreshold = threshold
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}

	db, err := database.InitGormDB(&cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if err := database.AutoMigrateModels(db); err != nil {
		_ = database.Close(db)
		log.Sync()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		_ = database.Close(db)
		log.Sync()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	store := repository.NewStore(db)
	if _, err := store.EnsureAlbum(context.Background(), models.DefaultAlbumName); err != nil {
		_ = database.Close(db)
		log.Sync()
		return nil, err
	}
	engine := faces.NewEngine(media.NewLoader(&cfg, log), log)
	service := services.NewFaceRecognitionService(store, engine, services.Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		YieldEvery:          cfg.YieldEvery,
		Metrics:             pipelineMetrics,
		Logger:              log,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		service:  service,
		metrics:  pipelineMetrics,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if err := a.service.Close(); err != nil {
		a.log.Warn("cmd: failed to release face models", "error", err)
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("cmd: failed to close database", "error", err)
	}
	a.log.Sync()
}
