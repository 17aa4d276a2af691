// Package fetch implements the fetch command, which downloads a batch of
// candidate documents through the resumable pipeline.
package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/finfetch/cmd/common"
	"github.com/jonesrussell/finfetch/internal/checkpoint"
	"github.com/jonesrussell/finfetch/internal/classify"
	"github.com/jonesrussell/finfetch/internal/domain"
	"github.com/jonesrussell/finfetch/internal/downloader"
	"github.com/jonesrussell/finfetch/internal/fetcher"
	"github.com/jonesrussell/finfetch/internal/logger"
	"github.com/jonesrussell/finfetch/internal/metrics"
	"github.com/jonesrussell/finfetch/internal/organize"
)

// maxCandidateLineBytes bounds one JSON line in the candidates file.
const maxCandidateLineBytes = 1024 * 1024

// ErrPartialFailure is returned when the batch drained but some documents
// exhausted their attempts, so the process exits non-zero.
var ErrPartialFailure = errors.New("some documents failed to download")

// Command creates the fetch command.
func Command() *cobra.Command {
	var candidatesFile string
	var resetState bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download candidate documents",
		Long: `Download the documents listed in a JSON-lines candidates file.
Each line is an object with "url" and optionally "source_page_url" and
"link_text". Already downloaded documents are skipped via the checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			return run(cmd.Context(), deps, candidatesFile, resetState)
		},
	}

	cmd.Flags().StringVarP(&candidatesFile, "candidates", "f", "", "path to the JSON-lines candidates file")
	_ = cmd.MarkFlagRequired("candidates")
	cmd.Flags().BoolVar(&resetState, "reset-state", false, "discard the existing checkpoint and start fresh")

	return cmd
}

// run wires the pipeline and processes the batch.
func run(ctx context.Context, deps common.CommandDeps, candidatesFile string, resetState bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := deps.Config
	log := deps.Logger

	cands, readErr := readCandidates(candidatesFile, log)
	if readErr != nil {
		return readErr
	}
	if len(cands) == 0 {
		log.Info("no usable candidates in file", "path", candidatesFile)
		return nil
	}

	store := checkpoint.New(deps.CheckpointPath(), log)
	if resetState {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	} else if err := store.Load(); err != nil {
		if errors.Is(err, checkpoint.ErrCorruptState) {
			return fmt.Errorf("%w (rerun with --reset-state to discard it)", err)
		}
		return err
	}

	classifier := classify.New(cfg.Company)
	organizer := organize.New(classifier, cfg.Downloads.MaxFilenameLength)
	alloc := organize.NewAllocator(cfg.Downloads.Directory, store)

	httpFetcher := fetcher.NewHTTP(fetcher.Config{
		UserAgent:         cfg.Downloads.UserAgent,
		Timeout:           cfg.Downloads.Timeout,
		AcceptContentType: classify.AllowedContentType,
	}, log)

	stats := metrics.NewMetrics()
	coord := downloader.New(store, organizer, alloc, httpFetcher, stats, log, downloader.Config{
		Root:           cfg.Downloads.Directory,
		WorkerCount:    cfg.Downloads.MaxConcurrent,
		RateLimitDelay: cfg.Downloads.RateLimitDelay,
		Retry:          cfg.Retry.Policy(fetcher.IsTransient),
		OnProgress: func(completed, total int, currentItem string) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", completed, total, currentItem)
		},
	})

	records, runErr := coord.Run(ctx, cands)
	failed := printOutcome(log, records)

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrPartialFailure, failed, len(records))
	}
	return nil
}

// readCandidates parses the JSON-lines candidates file, dropping links
// that are not financial documents or point at known non-document hosts.
func readCandidates(path string, log logger.Interface) ([]domain.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates file %s: %w", path, err)
	}
	defer f.Close()

	var cands []domain.Candidate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCandidateLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cand domain.Candidate
		if unmarshalErr := json.Unmarshal(line, &cand); unmarshalErr != nil {
			return nil, fmt.Errorf("candidates file %s line %d: %w", path, lineNo, unmarshalErr)
		}
		if cand.URL == "" {
			log.Warn("candidate without url, skipping", "line", lineNo)
			continue
		}
		if classify.ShouldSkip(cand.URL) {
			log.Debug("skipping non-document host", "url", cand.URL)
			continue
		}
		if !classify.IsFinancialDocument(cand.URL, cand.LinkText) {
			log.Debug("skipping non-financial link", "url", cand.URL)
			continue
		}
		cands = append(cands, cand)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("read candidates file %s: %w", path, scanErr)
	}

	log.Info("loaded candidates", "path", path, "count", len(cands))
	return cands, nil
}

// printOutcome summarizes the batch, lists failures, and returns how many
// records failed.
func printOutcome(log logger.Interface, records []domain.DownloadRecord) int {
	var ok, failed, pending int
	for _, rec := range records {
		switch rec.Status {
		case domain.StatusSucceeded:
			ok++
		case domain.StatusFailed:
			failed++
			lastError := ""
			if rec.LastError != nil {
				lastError = *rec.LastError
			}
			log.Warn("document failed", "url", rec.URL, "attempts", rec.Attempts, "error", lastError)
		case domain.StatusPending:
			pending++
		}
	}

	log.Info("batch complete", "succeeded", ok, "failed", failed, "pending", pending)
	return failed
}
