// Command storydeck runs the slide generation relay: a quota-gated HTTP
// front for the chat-completions API with a usage ledger and admin API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/storydeck/storydeck/internal/config"
	"github.com/storydeck/storydeck/internal/db"
	"github.com/storydeck/storydeck/internal/openai"
	"github.com/storydeck/storydeck/internal/quota"
	"github.com/storydeck/storydeck/internal/relay"
	"github.com/storydeck/storydeck/internal/usage"
)

func main() {
	var (
		configPath string
		port       int
	)
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.IntVar(&port, "port", 0, "listen port override")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		log.WithError(errLoad).Fatal("failed to load configuration")
	}
	if port > 0 {
		cfg.Port = port
	}

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		log.WithError(errOpen).Fatal("failed to open usage database")
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		log.WithError(errMigrate).Fatal("failed to migrate usage database")
	}
	recorder := usage.NewRecorder(conn)
	defer recorder.Flush()
	log.WithField("dialect", db.DialectName(conn)).Info("usage ledger ready")

	manager := quota.NewManager(quota.RedisConfig{
		Enabled:  cfg.Redis.Addr != "",
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	}, time.Now, nil)
	defer manager.Close()

	policy := quota.NewPolicy(manager, quota.Limits{
		PerMinute:   cfg.RateLimit.PerMinute,
		PerDay:      cfg.RateLimit.Daily,
		GlobalDaily: cfg.RateLimit.GlobalDaily,
	}, time.Now)

	client := openai.NewClient(cfg.OpenAI.BaseURL)
	server := relay.NewServer(cfg, policy, manager, relay.NewClientGenerator(client), recorder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if errRun := server.Run(ctx); errRun != nil {
		log.WithError(errRun).Fatal("server exited")
	}
}
