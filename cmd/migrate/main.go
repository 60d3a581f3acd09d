package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/PlanFox/internal/pkg/database"
	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
)

const usage = `usage: migrate <command>

  up        apply all pending migrations
  down      roll back the last migration
  goto N    migrate to version N
  force N   mark version N as applied and clear the dirty flag
  status    print the current version`

// migrator is the part of *migrate.Migrate the commands use
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

func main() {
	env.SetupEnvFile()
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	m, err := migrate.New(
		"file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"),
		"mysql://"+database.DSN("multiStatements=true"),
	)
	if err != nil {
		log.Fatalf("Opening migrations: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("Closing migrations: %v %v", srcErr, dbErr)
		}
	}()

	msg, err := run(m, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	log.Println(msg)
}

// run executes one command and returns what to report
func run(m migrator, args []string) (string, error) {
	switch args[0] {
	case "up":
		return done(m.Up(), "Migrations applied", "Database is up to date")
	case "down":
		return done(m.Steps(-1), "Last migration rolled back", "Nothing to roll back")
	case "goto", "force":
		if len(args) < 2 {
			return "", fmt.Errorf("%s needs a version", args[0])
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid version %q", args[1])
		}
		if args[0] == "force" {
			if err := m.Force(int(version)); err != nil {
				return "", err
			}
			return fmt.Sprintf("Forced version %d", version), nil
		}
		return done(m.Migrate(uint(version)),
			fmt.Sprintf("Migrated to version %d", version),
			fmt.Sprintf("Already at version %d", version))
	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "No migrations applied yet", nil
		}
		if err != nil {
			return "", err
		}
		if dirty {
			return fmt.Sprintf("Version %d (dirty, fix and run force %d)", version, version), nil
		}
		return fmt.Sprintf("Version %d", version), nil
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], usage)
}

func done(err error, applied, unchanged string) (string, error) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		return unchanged, nil
	case err != nil:
		return "", err
	}
	return applied, nil
}
