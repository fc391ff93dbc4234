// Command fipectl inspects a FIPE price database from the terminal and
// loads fixture data into it for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"fipetracker/server/config"
)

var (
	cfg    *config.Config
	dbPath string
	logger = logrus.New()
)

func main() {
	var err error
	if cfg, err = config.LoadConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	flag.StringVar(&dbPath, "db", cfg.Database.Path, "Path to the sqlite price database.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}
	commander.Register(&importCmd{}, "development")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
