package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/gamezone-reservation/internal/config"
	"github.com/iliyamo/gamezone-reservation/internal/database"
	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/queue"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/service"
	"github.com/iliyamo/gamezone-reservation/internal/utils"
)

// MigrateCmd applies the embedded migrations.
type MigrateCmd struct{}

func (MigrateCmd) Run(cli *CLI) error {
	db, err := openDB(config.Load())
	if err != nil {
		return err
	}
	defer db.Close()
	v, err := database.SchemaVersion(db)
	if err != nil {
		return err
	}
	cli.logger.Info("schema up to date", "version", v)
	return nil
}

// SweepCmd runs the maintenance sweep once and prints its counters.
type SweepCmd struct{}

func (SweepCmd) Run(cli *CLI) error {
	db, err := openDB(config.Load())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Inline publishing so the event is sent before the process exits.
	events := service.NewSyncEmitter(newPublisher(cli.logger), cli.logger)
	res, err := newSweeper(db, events, cli.logger).Run(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}

// SeedAdminCmd creates the configured admin account once.
type SeedAdminCmd struct {
	Nom    string `help:"Last name of the admin." default:"Admin"`
	Prenom string `help:"First name of the admin." default:"GameZone"`
}

func (s SeedAdminCmd) Run(cli *CLI) error {
	cfg := config.Load()
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admins := repository.NewAdminRepo(db)
	if _, err := admins.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		cli.logger.Info("admin already exists", "email", cfg.AdminEmail)
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := utils.CheckPasswordPolicy(cfg.AdminPassword); err != nil {
		return err
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	id, err := admins.Create(ctx, s.Nom, s.Prenom, cfg.AdminEmail, hash)
	if err != nil {
		return err
	}
	cli.logger.Info("admin created", "id", id, "email", cfg.AdminEmail)
	return nil
}

// demoStations is the catalogue inserted by seed-stations.
var demoStations = []repository.StationInput{
	{Plateforme: model.PlatformPC, ConfigPC: "Intel i7-12700K, RTX 4070, 32GB RAM, SSD 1TB"},
	{Plateforme: model.PlatformPC, ConfigPC: "Intel i5-12400F, RTX 4060, 16GB RAM, SSD 512GB"},
	{Plateforme: model.PlatformConsole, NombreManettes: 4},
	{Plateforme: model.PlatformConsole, NombreManettes: 2},
}

// SeedStationsCmd inserts demoStations into an empty catalogue.
type SeedStationsCmd struct{}

func (SeedStationsCmd) Run(cli *CLI) error {
	db, err := openDB(config.Load())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stations := repository.NewStationRepo(db)
	n, err := stations.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		cli.logger.Info("stations already present, skipping", "count", n)
		return nil
	}
	for _, in := range demoStations {
		id, err := stations.Create(ctx, in)
		if err != nil {
			return err
		}
		cli.logger.Info("station created", "id", id, "plateforme", in.Plateforme)
	}
	return nil
}

// ConsumeCmd drains the events queue into <EVENTS_LOG_DIR>/events.log.
type ConsumeCmd struct{}

func (ConsumeCmd) Run(cli *CLI) error {
	ec := config.LoadEventsConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: ec.URL, Queue: ec.Queue, LogDir: ec.LogDir, Logger: cli.logger}
	cli.logger.Info("consuming events", "queue", ec.Queue, "log_dir", ec.LogDir)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
