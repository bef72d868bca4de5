// Command import loads YAML layer catalogs into the campus entity tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"campus-map-server/internal/shared/config"
	"campus-map-server/internal/shared/database"
	"campus-map-server/internal/shared/logger"
	"campus-map-server/internal/spatial"
	"campus-map-server/internal/visibility"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "time allowed for the whole import")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: import [-timeout d] catalog.yaml...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()
	log := slog.With("component", "import")

	db, err := database.Connect(config.GlobalConfig)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background(), database.MigrationSource(config.GlobalConfig.Database.MigrationsPath)); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	presets, err := visibility.LoadPresets(config.GlobalConfig.Map.PresetsPath)
	if err != nil {
		log.Error("Failed to load presets", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service := spatial.NewService(spatial.NewRepository(db, slog.Default()), presets, slog.Default())
	failed := 0
	for _, path := range flag.Args() {
		if err := importFile(ctx, service, path); err != nil {
			log.Error("Import failed", "file", path, "error", err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func importFile(ctx context.Context, service *spatial.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	layer, records, err := spatial.ParseCatalog(data)
	if err != nil {
		return err
	}
	count, err := service.Import(ctx, layer, records)
	if err != nil {
		return err
	}
	slog.Info("Catalog imported", "file", path, "layer_id", layer.ID, "entities", count)
	return nil
}
