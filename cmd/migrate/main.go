// Command migrate applies or rolls back the embedded links schema.
//
//	migrate up | down | version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Varun5711/shortlinks/internal/config"
	"github.com/Varun5711/shortlinks/internal/database/migrations"
	"github.com/Varun5711/shortlinks/internal/logger"
)

func main() {
	log := logger.New("migrate")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-dsn DSN] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	dsn := flag.String("dsn", "", "database URL (defaults to DB_PRIMARY_DSN)")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal("Failed to load config: %v", err)
		}
		*dsn = cfg.Database.PrimaryDSN
	}

	m, err := migrations.New(*dsn, log)
	if err != nil {
		log.Fatal("%v", err)
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
		if err == nil {
			log.Info("Rolled back one migration")
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			err = verr
			break
		}
		log.Info("Schema version %d (dirty=%t)", version, dirty)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("Migration %s failed: %v", flag.Arg(0), err)
	}
}
