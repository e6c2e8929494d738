package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/download"
	"github.com/NamanBalaji/bsfetch/internal/fetch"
	"github.com/NamanBalaji/bsfetch/internal/filesystem"
	"github.com/NamanBalaji/bsfetch/internal/progress"
	"github.com/NamanBalaji/bsfetch/internal/repository"
	"github.com/NamanBalaji/bsfetch/internal/transfer"
	httpPkg "github.com/NamanBalaji/bsfetch/pkg/http"
)

// session bundles what every transfer command needs.
type session struct {
	http    *httpPkg.Client
	repo    *repository.BboltRepository
	hub     *progress.Hub
	manager *download.Manager
	printer *progressPrinter
}

func openRepository() (*repository.BboltRepository, error) {
	if err := filesystem.NewOSFileSystem().EnsureDirectory(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}

	repo, err := repository.NewBboltRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error opening history: %w", err)
	}

	return repo, nil
}

func newSession() (*session, error) {
	repo, err := openRepository()
	if err != nil {
		return nil, err
	}

	client := httpPkg.NewClient(
		httpPkg.WithTimeout(cfg.Http.Timeout),
		httpPkg.WithUserAgent(cfg.Http.UserAgent),
	)

	hub := progress.NewHub()
	fetcher := fetch.New(client, fetch.WithRetryDelay(cfg.Http.RetryDelay))

	return &session{
		http:    client,
		repo:    repo,
		hub:     hub,
		manager: download.NewManager(fetcher, repo, hub, download.WithMaxWorkers(transfer.DefaultMaxWorkers)),
		printer: newProgressPrinter(hub),
	}, nil
}

// fetch downloads one target into the configured directory and reports the
// outcome. It returns false when the transfer did not complete.
func (s *session) fetch(ctx context.Context, target download.Target) bool {
	s.printer.Name(target.FileID, target.Name)

	path, res, err := s.manager.DownloadToPath(ctx, target, cfg.DownloadDir, settings())

	switch {
	case err != nil:
		s.printer.Break()
		printError(fmt.Sprintf("%s: %v", target.Name, err))
		if hint := failureHint(err); hint != "" {
			printWarning(hint)
		}
		return false
	case res.Cancelled:
		s.printer.Break()
		printWarning(fmt.Sprintf("%s: cancelled after %d/%d chunks, partial file left at %s", target.Name, res.CompletedChunks, res.TotalChunks, path))
		return false
	}

	s.printer.WaitDrawn(target.FileID)
	printSuccess(fmt.Sprintf("%s (%s) saved to %s in %v", target.Name, formatBytes(target.Size), path, res.Elapsed.Round(time.Millisecond)))

	return true
}

func (s *session) Close() {
	s.printer.Close()
	s.hub.Close()

	if err := s.repo.Close(); err != nil {
		printError(fmt.Sprintf("error closing history: %v", err))
	}
}
