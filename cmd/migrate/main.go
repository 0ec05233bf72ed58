package main

import (
	"context"
	"fmt"
	"os"

	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dir := flags.String("dir", cfg.Database.MigrationsDir, "directory holding the SQL migrations")
	steps := flags.Int("steps", 1, "number of migrations to roll back with down")
	version := flags.Int("version", -1, "version to record with force")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: migrate [flags] up|down|version|force\n\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	l := logger.NewLogger("")
	defer l.Close()

	cfg.Database.ConnectRetries = 1
	sqldb, bunDB, err := database.ConnectPostgres(context.Background(), cfg.Database, l)
	if err != nil {
		l.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(sqldb, *dir, l)
	defer runner.Close()

	switch flags.Arg(0) {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down(*steps)
	case "force":
		if *version < 0 {
			l.Fatal("MIGRATE", "force needs --version")
		}
		err = runner.Force(*version)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = runner.Version()
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		l.Fatal("MIGRATE", fmt.Sprintf("%s failed: %v", flags.Arg(0), err))
	}
}
