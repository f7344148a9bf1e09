package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/civicid/internal/cli"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/civicid/internal/metrics"
	"github.com/zarlcorp/civicid/internal/tui"
	"github.com/zarlcorp/core/pkg/zapp"
)

// version is set at build time via ldflags.
var version = "dev"

const usage = `usage: civicid [command] [flags] [address...]

commands:
  generate   generate identicons and metadata for addresses (or stdin)
  examples   generate the built-in example addresses
  did        print the DID of each address
  list       list saved identities
  forget     remove a saved identity
  serve      serve images, metadata and profiles over HTTP
  version    print the version

with no command, civicid starts the interactive interface.
`

func main() {
	app := zapp.New(zapp.WithName("civicid"))

	ctx, cancel := zapp.SignalContext(context.Background())
	defer cancel()

	logger := newLogger(os.Args[1:])
	slog.SetDefault(logger)

	if len(os.Args) > 1 {
		err := runCLI(ctx, cli.DefaultEnv(logger), os.Args[1], os.Args[2:])
		_ = app.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "civicid: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runTUI(logger); err != nil {
		slog.Error("tui", "err", err)
		_ = app.Close()
		os.Exit(1)
	}

	if err := app.Close(); err != nil {
		slog.Error("shutdown", "err", err)
		os.Exit(1)
	}
}

func newLogger(args []string) *slog.Logger {
	level := slog.LevelWarn
	for _, a := range args {
		if a == "--verbose" || a == "-v" {
			level = slog.LevelDebug
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runCLI(ctx context.Context, env cli.Env, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Fprintf(env.Stdout, "civicid %s\n", version)
		return nil
	case "generate":
		return cli.CmdGenerate(ctx, env, args)
	case "examples":
		return cli.CmdExamples(ctx, env, args)
	case "did":
		return cli.CmdDID(env, args)
	case "list":
		return cli.CmdList(env, args)
	case "forget":
		return cli.CmdForget(env, args)
	case "serve":
		return cli.CmdServe(ctx, env, args)
	case "help", "-h", "--help":
		fmt.Fprint(env.Stdout, usage)
		return nil
	}

	fmt.Fprint(env.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func runTUI(logger *slog.Logger) error {
	env := cli.DefaultEnv(logger)

	opts, _, err := cli.ParseOptions(nil, env.Getenv)
	if err != nil {
		return err
	}
	store, err := cli.NewStore(opts)
	if err != nil {
		return err
	}

	// keep log output off the alternate screen
	env.Logger = slog.New(slog.DiscardHandler)
	gen := cli.NewPipeline(opts, store, metrics.New(), env)

	dataDir := cli.DataDir()
	m := tui.New(version, dataDir, gen, metadata.URLs{Base: opts.BaseURL}, cli.IsFirstRun(dataDir))
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	fm, ok := finalModel.(tui.Model)
	if !ok {
		return errors.New("unexpected final model")
	}
	fm.Close()
	return nil
}
