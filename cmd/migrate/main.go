package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"fundsync/internal/config"
	"fundsync/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		up         = flag.Bool("up", false, "run pending migrations")
		down       = flag.Bool("down", false, "roll back all migrations")
		version    = flag.Bool("version", false, "print current migration version")
		force      = flag.Int("force", -1, "force migration version (repairs dirty state)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
	case *down:
		if err := migrator.Down(); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
	case *version:
		v, err := migrator.Version()
		if err != nil {
			log.Fatalf("failed to read version: %v", err)
		}
		fmt.Printf("current migration version: %d\n", v)
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			log.Fatalf("force failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
