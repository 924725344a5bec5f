package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/database/postgres"
	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type CatalogBusiness struct {
	models.Business `yaml:",inline"`
	Services        []models.Service              `yaml:"services"`
	Weekly          []models.AvailabilityTemplate `yaml:"weekly"`
}

type Catalog struct {
	Businesses []CatalogBusiness `yaml:"businesses"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		configPath  = flag.String("config", "configs/config.yaml", "path to config.yaml")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog Catalog
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Businesses) == 0 {
		return fmt.Errorf("no businesses in yaml")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openRepository(ctx, cfg, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer repo.Close()

	schedule := service.NewScheduleService(repo, &logger)

	services := 0
	for i := range catalog.Businesses {
		entry := &catalog.Businesses[i]
		if err = schedule.SaveBusiness(ctx, &entry.Business); err != nil {
			return fmt.Errorf("save business %q: %w", entry.Name, err)
		}

		for j := range entry.Services {
			svc := &entry.Services[j]
			svc.BusinessID = entry.ID
			if err = schedule.SaveService(ctx, svc); err != nil {
				return fmt.Errorf("save service %q of %s: %w", svc.Name, entry.ID, err)
			}
			services++
		}

		weekly := make([]*models.AvailabilityTemplate, len(entry.Weekly))
		for j := range entry.Weekly {
			entry.Weekly[j].BusinessID = entry.ID
			weekly[j] = &entry.Weekly[j]
		}
		if err = schedule.SetWeeklyTemplate(ctx, entry.ID, weekly); err != nil {
			return fmt.Errorf("set weekly template of %s: %w", entry.ID, err)
		}

		logger.Info().Str("business_id", entry.ID).Int("services", len(entry.Services)).Int("days", len(weekly)).Msg("business seeded")
	}

	fmt.Printf("done: businesses=%d services=%d\n", len(catalog.Businesses), services)
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Repository, error) {
	if cfg.Database.Driver == "postgres" {
		return postgres.Open(ctx, cfg.Database.Postgres.DSN(), logger)
	}
	return database.NewDB(cfg.Database.Path, logger)
}
