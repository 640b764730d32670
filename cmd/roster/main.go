// Command roster seeds, inspects and edits a persisted soldier roster.
//
// Usage:
//
//	roster seed -file seed.yaml
//	roster show
//	roster promote -name John
//	roster demote -name John
//	roster discharge -name John
//
// Storage is selected with ROSTER_STORAGE_DRIVER and friends (see core.StorageConfig).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"roster/internal/core"
	"roster/internal/platform/config"
)

type cliConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
	Trace    bool   `env:"TRACE"`
	Storage  core.StorageConfig
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	var cfg cliConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("roster: %v", err)
	}

	ctx := context.Background()
	svc, err := openService(ctx, cfg, os.Stderr)
	if err != nil {
		config.Exitf("roster: %v", err)
	}
	if err := execute(ctx, svc, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		config.Exitf("roster %s: %v", os.Args[1], err)
	}
}

// execute runs cmd and then closes svc exactly once. A close failure is
// reported only when the command itself succeeded.
func execute(ctx context.Context, svc *core.Service, cmd string, args []string, out io.Writer) error {
	err := run(ctx, svc, cmd, args, out)
	if cerr := svc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: roster <seed|show|promote|demote|discharge> [flags]")
}

func openService(ctx context.Context, cfg cliConfig, logOut io.Writer) (*core.Service, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))

	store, err := core.OpenSnapshotStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	opts := []core.ServiceOption{
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithSnapshotStore(store),
	}
	if cfg.Trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(logOut)))
	}
	return core.NewService(opts...), nil
}

func run(ctx context.Context, svc *core.Service, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ContinueOnError)
		path := fs.String("file", "seed.yaml", "YAML seed file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return seedCmd(ctx, svc, *path, out)
	case "show":
		if err := svc.Restore(ctx); err != nil {
			return err
		}
		return showCmd(ctx, svc, out)
	case "promote", "demote", "discharge":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		name := fs.String("name", "", "soldier name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if strings.TrimSpace(*name) == "" {
			return fmt.Errorf("missing -name")
		}
		return editCmd(ctx, svc, cmd, *name, out)
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func showCmd(ctx context.Context, svc *core.Service, out io.Writer) error {
	for _, e := range svc.Roster(ctx) {
		info, _ := e.Soldier.ExtendedInfo()
		fmt.Fprintf(out, "%-8s %-9s %-12s %-10s pay=%s %s\n",
			e.Key, e.Soldier.Variant(), e.Soldier.Name(), e.Soldier.Rank(), e.Soldier.CalculatePay(), info)
	}
	fmt.Fprintf(out, "payroll: %s\n", svc.Payroll(ctx))
	return nil
}

func editCmd(ctx context.Context, svc *core.Service, action, name string, out io.Writer) error {
	if err := svc.Restore(ctx); err != nil {
		return err
	}
	k, ok := svc.FindByName(ctx, name)
	if !ok {
		return fmt.Errorf("no soldier named %q", name)
	}
	switch action {
	case "promote", "demote":
		change := svc.Promote
		if action == "demote" {
			change = svc.Demote
		}
		rank, err := change(ctx, k)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", name, rank)
	case "discharge":
		svc.Discharge(ctx, k)
		fmt.Fprintf(out, "%s discharged\n", name)
	}
	return svc.Persist(ctx)
}
