package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locshare/cmd/archiver"
	sharingservice "locshare/cmd/sharing_service"
	"locshare/cmd/simulator"
	"locshare/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeSharing:
		fs := flag.NewFlagSet(cli.ModeSharing, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 200, "Maximum number of concurrent HTTP requests to process")
		configPath := fs.String("config", "./config/config.yaml", "Path to the YAML config file")
		cli.AttachUsage(fs, cli.ModeSharing)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := sharingservice.Run(ctx, *maxConc, *configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeArchiver:
		fs := flag.NewFlagSet(cli.ModeArchiver, flag.ContinueOnError)
		prefetch := fs.Int("prefetch", 32, "RabbitMQ prefetch count for the consumer channel")
		configPath := fs.String("config", "./config/config.yaml", "Path to the YAML config file")
		cli.AttachUsage(fs, cli.ModeArchiver)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *prefetch <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --prefetch must be > 0")
			fs.Usage()
			os.Exit(2)
		}
		if err := archiver.Run(ctx, *prefetch, *configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeSimulator:
		fs := flag.NewFlagSet(cli.ModeSimulator, flag.ContinueOnError)
		userID := fs.String("user-id", "demo-user", "User ID the simulated device broadcasts as")
		lat := fs.Float64("lat", 37.7749, "Starting latitude of the random walk")
		lng := fs.Float64("lng", -122.4194, "Starting longitude of the random walk")
		configPath := fs.String("config", "./config/config.yaml", "Path to the YAML config file")
		cli.AttachUsage(fs, cli.ModeSimulator)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *userID == "" {
			fmt.Fprintln(os.Stderr, "Error: --user-id must not be empty")
			fs.Usage()
			os.Exit(2)
		}
		if err := simulator.Run(ctx, *userID, *lat, *lng, *configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
