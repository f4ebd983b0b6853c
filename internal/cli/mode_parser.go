package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeSharing   = "sharing-service"
	ModeArchiver  = "archiver"
	ModeSimulator = "simulator"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeSharing, "sharing", "s":
		return ModeSharing, true
	case ModeArchiver, "arc", "a":
		return ModeArchiver, true
	case ModeSimulator, "sim":
		return ModeSimulator, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `sharing-service --max-concurrent=200`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./locshare --mode=<service> [flags]

Services (modes):
  sharing-service      WebSocket gateway, broadcasts, permissions, metrics
  archiver             Consumes the location history queue into Postgres
  simulator            Simulated device broadcasting a random walk

Examples:
  ./locshare --mode=sharing-service --max-concurrent=200
  ./locshare --mode=archiver --prefetch=32
  ./locshare --mode=simulator --user-id=demo-user --lat=37.7749 --lng=-122.4194`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./locshare --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
