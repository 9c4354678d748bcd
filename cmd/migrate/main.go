// Command migrate manages the legalis database schema.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"legalis/internal/config"
)

const usage = "usage: migrate [-source dir] up | down | steps N | force V | version"

func main() {
	source := flag.String("source", "db/migrations", "directory holding migration files")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("migrate: loading config: %v", err)
	}

	m, err := migrate.New("file://"+*source, cfg.DB.DSN())
	if err != nil {
		log.Fatalf("migrate: opening source %s: %v", *source, err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		report(m.Up(), "schema is up to date")
	case "down":
		report(m.Down(), "schema fully reverted")
	case "steps":
		if len(args) < 2 {
			log.Fatal("migrate: steps requires a count")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("migrate: bad step count %q: %v", args[1], err)
		}
		report(m.Steps(n), fmt.Sprintf("moved %d step(s)", n))
	case "force":
		if len(args) < 2 {
			log.Fatal("migrate: force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("migrate: bad version %q: %v", args[1], err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("migrate: force failed: %v", err)
		}
		log.Printf("migrate: version forced to %d", v)
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("migrate: reading version: %v", err)
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func report(err error, done string) {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("migrate: no change")
		return
	}
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrate: " + done)
}
