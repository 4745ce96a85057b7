// Command seqio-gen writes a repeating text pattern to a file using
// seqio.Writer, as a smoke test for the direct-I/O streaming path.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fiox/seqio"
	"github.com/fiox/seqio/internal/logging"
)

var pattern = []byte("1234567890abcdefghijklmnopqrstuvwxyz\n")

func main() {
	var (
		sizeStr = flag.String("size", "1G", "Total amount of data to write (e.g., 64M, 1G)")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: seqio-gen [-size 1G] <output-path>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	total, err := parseSize(*sizeStr)
	if err != nil {
		log.Fatalf("invalid size %q: %v", *sizeStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	opts := seqio.DefaultOptions()
	opts.Logger = logger

	w, err := seqio.NewWriter(path, &opts)
	if err != nil {
		logger.Error("failed to open writer", "path", path, "error", err)
		os.Exit(1)
	}

	var written int64
	for written < total {
		n, err := w.Write(pattern)
		if err != nil {
			logger.Error("write failed", "error", err)
			w.Close()
			os.Exit(1)
		}
		written += int64(n)
	}

	if err := w.Close(); err != nil {
		logger.Error("close failed", "error", err)
		os.Exit(1)
	}

	snap := w.Metrics().Snapshot()
	logger.Info("write complete",
		"path", path,
		"bytes", formatSize(written),
		"submissions", snap.Submissions,
		"tail_flushes", snap.TailFlushes)
}

// parseSize parses a size string like "64M", "1G", "512K".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
