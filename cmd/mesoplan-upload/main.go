package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/meltforce/mesoplan/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "Mesoplan server URL (e.g. https://mesoplan.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("MESOPLAN_API_KEY"), "API key for writes (default $MESOPLAN_API_KEY)")
	dir := flag.String("path", "", "directory of YAML mesocycle templates")
	dryRun := flag.Bool("dry-run", false, "validate templates but don't send to server")
	watch := flag.Bool("watch", false, "keep running and upload templates as they change")
	days := flag.Int("days", 7, "days per microcycle; must match the server")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("mesoplan-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: mesoplan-upload -server <URL> -path <template dir> [-dry-run] [-watch] [-days N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if !*dryRun && (*serverURL == "" || *apiKey == "") {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}

	info, err := os.Stat(*dir)
	if err != nil || !info.IsDir() {
		log.Error("template directory not found", "path", *dir)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	state, err := upload.OpenStateDB(filepath.Join(homeDir, ".mesoplan-upload"))
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *dryRun {
		log.Info("DRY RUN mode: templates will be validated but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader := upload.New(upload.NewClient(*serverURL, *apiKey), state, *dir, *dryRun, *days, log)
	if *watch {
		if err := uploader.Watch(ctx); err != nil {
			log.Error("watch failed", "error", err)
			stats := uploader.Stats()
			printStats(&stats)
			os.Exit(1)
		}
		stats := uploader.Stats()
		printStats(&stats)
		return
	}

	stats, err := uploader.Run(ctx)
	if err != nil {
		log.Error("upload failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}
	printStats(stats)
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files rejected:   %d\n", stats.FilesRejected)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Printf("  Replaced:         %d (older version archived)\n", stats.TemplatesReplaced)
	fmt.Println()
	fmt.Printf("  Sets created:     %d\n", stats.SetsCreated)
	fmt.Println()
}
