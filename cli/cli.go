// Package cli implements the operational subcommands of the gateway binary.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"authgate/config"
	"authgate/core/guard"
	"authgate/core/store"
	"authgate/core/utils"
)

func Run() {
	routesCheckCmd := flag.NewFlagSet("routes-check", flag.ExitOnError)
	routesPath := routesCheckCmd.String("f", "", "route table path (defaults to the configured one)")

	sweepCmd := flag.NewFlagSet("sweep-sessions", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println("commands: routes-check, sweep-sessions")
		return
	}

	switch os.Args[1] {
	case "routes-check":
		_ = routesCheckCmd.Parse(os.Args[2:])
		runRoutesCheck(*routesPath)
	case "sweep-sessions":
		_ = sweepCmd.Parse(os.Args[2:])
		runSweepSessions()
	default:
		fmt.Println("unknown command")
	}
}

// runRoutesCheck parses the route table and prints it in declaration order,
// failing loudly on the first malformed entry.
func runRoutesCheck(path string) {
	logger := utils.NewLogger()
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatalf("config: %v", err)
		}
		path = cfg.Routes.Path
	}
	rules, err := guard.LoadRules(path)
	if err != nil {
		logger.Fatalf("route table %s: %v", path, err)
	}
	fmt.Printf("%s: %d routes\n", path, len(rules))
	for _, r := range rules {
		fmt.Printf("  %s %s -> %s\n", r.Method, r.Pattern, strings.Join(r.Required, ", "))
	}
}

func runSweepSessions() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLogger()
	if cfg.Session.Backend != "sql" {
		logger.Fatalf("sweep-sessions only applies to the sql session backend (configured: %s)", cfg.Session.Backend)
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()
	sweeper, err := store.NewSweeper(db, cfg.Session.SweepSchedule, logger)
	if err != nil {
		logger.Fatalf("sweeper: %v", err)
	}
	n, err := sweeper.SweepNow(context.Background())
	if err != nil {
		logger.Fatalf("sweep: %v", err)
	}
	fmt.Printf("removed %d expired sessions\n", n)
}
