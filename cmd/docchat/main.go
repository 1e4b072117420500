package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/loader"
	"docchat/internal/service"
	"docchat/internal/tui"
)

func main() {
	var logPath string
	flag.StringVar(&logPath, "log", "", "Write logs to this file (logs are discarded when empty)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: docchat [--log=docchat.log] path [path ...]")
		fmt.Fprintln(flag.CommandLine.Output(), "Paths may be .pdf, .md or .txt files, or directories containing them.")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(flag.Args(), logPath))
}

func run(paths []string, logPath string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 2
	}

	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			return 1
		}
		defer func() {
			_ = f.Close()
		}()
		logOut = f
	}
	slog.SetDefault(app.NewLogger(cfg, logOut))

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		return app.ErrorExitCode(err)
	}
	defer func() {
		_ = a.Close()
	}()

	ctx := context.Background()
	docs, err := loader.Scan(ctx, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load documents: %v\n", err)
		return app.ErrorExitCode(err)
	}

	session := service.NewSession(uuid.NewString(), a.Deps, a.Options)
	defer func() {
		_ = session.Close(ctx)
	}()

	if _, err := tea.NewProgram(tui.New(ctx, session, docs), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal error: %v\n", err)
		return 1
	}
	return 0
}
