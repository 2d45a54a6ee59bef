package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/XB811/index12306/internal/cli"
	"github.com/XB811/index12306/internal/iocli"
	"github.com/XB811/index12306/internal/logger"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	verbose := flag.Bool("v", false, "Log rejected tokens to stderr")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.Setup(os.Stderr, level)

	c := cli.New(iocli.NewStdio(), log, os.Getenv)

	args := flag.Args()
	if len(args) == 0 {
		c.PrintUsage()
		os.Exit(1)
	}

	if err := c.Run(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("index12306 jwtctl\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
