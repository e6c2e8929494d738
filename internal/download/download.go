package download

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NamanBalaji/bsfetch/internal/chunk"
	"github.com/NamanBalaji/bsfetch/internal/config"
	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/filesystem"
	"github.com/NamanBalaji/bsfetch/internal/locator"
	"github.com/NamanBalaji/bsfetch/internal/logger"
	"github.com/NamanBalaji/bsfetch/internal/progress"
	"github.com/NamanBalaji/bsfetch/internal/repository"
	"github.com/NamanBalaji/bsfetch/internal/status"
	"github.com/NamanBalaji/bsfetch/internal/transfer"
	"github.com/NamanBalaji/bsfetch/pkg/basespace"
)

const (
	SourceBaseSpace = "basespace"
	SourceS3        = "s3"
)

var (
	ErrNoRefresher  = errors.New("target has no locator refresher")
	ErrFileCreate   = errors.New("file create failed")
	ErrFileNotFound = errors.New("file metadata not found")
)

// Settings are the per-transfer tunables.
type Settings struct {
	ChunkSize      int64
	MaxRetries     int
	MaxConcurrency int
}

// SettingsFromConfig maps the configuration file onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ChunkSize:      cfg.FileMultipartSizeThreshold,
		MaxRetries:     cfg.RetryAttempts,
		MaxConcurrency: cfg.MaxConcurrency,
	}
}

// Target describes a remote file and how to obtain its content locator.
type Target struct {
	FileID    string
	Name      string
	Source    string
	Size      int64
	Refresher locator.Refresher
}

// FileClient is the part of the platform API a download needs.
type FileClient interface {
	basespace.ContentMetaGetter
	GetFile(ctx context.Context, id string) (*basespace.File, error)
}

type Option func(*Manager)

// WithMaxWorkers caps concurrent chunk fetches across settings.
func WithMaxWorkers(n int) Option {
	return func(m *Manager) {
		m.coordinatorOpts = append(m.coordinatorOpts, transfer.WithMaxWorkers(n))
	}
}

// WithFileSystem replaces the OS filesystem used by DownloadToPath.
func WithFileSystem(fs filesystem.FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.coordinatorOpts = append(m.coordinatorOpts, transfer.WithClock(now))
	}
}

// Manager runs transfers and records them in the history repository.
type Manager struct {
	coordinator     *transfer.Coordinator
	coordinatorOpts []transfer.Option
	repo            repository.Repository
	hub             *progress.Hub
	fs              filesystem.FileSystem
	now             func() time.Time
}

// NewManager builds a Manager. repo and hub may be nil.
func NewManager(fetcher transfer.RangeFetcher, repo repository.Repository, hub *progress.Hub, opts ...Option) *Manager {
	m := &Manager{
		repo: repo,
		hub:  hub,
		fs:   filesystem.NewOSFileSystem(),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.coordinator = transfer.NewCoordinator(fetcher, m.coordinatorOpts...)

	return m
}

// Download transfers target into sink. Cancelling ctx stops the transfer
// cooperatively; that is reported through Result.Cancelled, not an error.
func (m *Manager) Download(ctx context.Context, target Target, sink io.WriterAt, settings Settings) (transfer.Result, error) {
	return m.run(ctx, target, sink, settings, "")
}

// DownloadFileByID looks up the metadata of fileID, then downloads it.
func (m *Manager) DownloadFileByID(ctx context.Context, client FileClient, fileID string, sink io.WriterAt, settings Settings) (transfer.Result, error) {
	target, err := m.FileTargetByID(ctx, client, fileID)
	if err != nil {
		return transfer.Result{}, err
	}

	return m.Download(ctx, target, sink, settings)
}

// FileTargetByID looks up the metadata of fileID and describes it as a
// download target.
func (m *Manager) FileTargetByID(ctx context.Context, client FileClient, fileID string) (Target, error) {
	f, err := client.GetFile(ctx, fileID)
	if err != nil {
		return Target{}, err
	}

	if f == nil {
		return Target{}, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}

	return FileTarget(client, f), nil
}

// FileTarget describes a platform file as a download target.
func FileTarget(client basespace.ContentMetaGetter, f *basespace.File) Target {
	return Target{
		FileID:    f.Id,
		Name:      f.Name,
		Source:    SourceBaseSpace,
		Size:      f.Size,
		Refresher: basespace.ContentRefresher(client, f.Id),
	}
}

// DownloadToPath writes target into dir under its own name and returns the
// path. The file is pre-sized so chunks can land anywhere in it.
func (m *Manager) DownloadToPath(ctx context.Context, target Target, dir string, settings Settings) (string, transfer.Result, error) {
	// Reject what run would reject before touching the destination.
	if target.Refresher == nil {
		return "", transfer.Result{}, errors.NewConfigurationError(ErrNoRefresher, target.FileID)
	}

	if err := transferSpec(target, settings).Validate(); err != nil {
		return "", transfer.Result{}, errors.NewConfigurationError(err, target.FileID)
	}

	path := filepath.Join(dir, localName(target))

	if exists, err := m.fs.FileExists(path); err == nil && exists {
		logger.Warnf("Overwriting existing file %s", path)
	}

	f, err := m.fs.CreateSized(path, target.Size)
	if err != nil {
		return "", transfer.Result{}, errors.NewIOError(fmt.Errorf("%w: %w", ErrFileCreate, err), path)
	}

	res, runErr := m.run(ctx, target, f, settings, path)

	if err := f.Close(); err != nil && runErr == nil {
		runErr = errors.NewIOError(err, path)
	}

	return path, res, runErr
}

// History returns every recorded transfer, oldest first.
func (m *Manager) History() ([]*repository.Record, error) {
	if m.repo == nil {
		return nil, nil
	}

	return m.repo.FindAll()
}

// Transfer returns the record with the given id.
func (m *Manager) Transfer(id uuid.UUID) (*repository.Record, error) {
	if m.repo == nil {
		return nil, repository.ErrRecordNotFound
	}

	return m.repo.Find(id)
}

// ClearHistory removes every finished transfer and returns how many were
// removed. Active records are kept.
func (m *Manager) ClearHistory() (int, error) {
	records, err := m.History()
	if err != nil {
		return 0, err
	}

	var removed int
	for _, r := range records {
		if !status.IsTerminal(r.Status) {
			continue
		}

		if err := m.repo.Delete(r.ID); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

func (m *Manager) run(ctx context.Context, target Target, sink io.WriterAt, settings Settings, dest string) (transfer.Result, error) {
	if target.Refresher == nil {
		return transfer.Result{}, errors.NewConfigurationError(ErrNoRefresher, target.FileID)
	}

	record := &repository.Record{
		ID:          uuid.New(),
		FileID:      target.FileID,
		Name:        target.Name,
		Source:      target.Source,
		Destination: dest,
		Size:        target.Size,
		ChunkSize:   settings.ChunkSize,
		TotalChunks: chunk.Count(target.Size, settings.ChunkSize),
		Status:      status.Active,
		StartedAt:   m.now(),
	}
	m.save(record)

	logger.Infof("Downloading %s (%s, %d bytes) in %d chunks", target.FileID, target.Name, target.Size, record.TotalChunks)

	cache := locator.NewCache(target.Refresher, locator.WithResource(target.FileID), locator.WithClock(m.now))

	var (
		obs     transfer.Observer
		tracker *progress.Tracker
	)
	if m.hub != nil {
		tracker = m.hub.Track(target.FileID)
		obs = tracker
	}

	res, err := m.coordinator.Run(ctx, transferSpec(target, settings), sink, cache, obs)

	record.CompletedChunks = res.CompletedChunks
	record.FinishedAt = m.now()

	if tracker != nil {
		if last, ok := tracker.Last(); ok {
			logger.Debugf("Last progress for %s: %d%% at %s", target.FileID, last.Percent, progress.FormatThroughput(last.Throughput))
		}
	}

	switch {
	case err != nil:
		record.Status = status.Failed
		record.Error = err.Error()
		logger.Errorf("Download of %s failed after %d/%d chunks: %v", target.FileID, res.CompletedChunks, res.TotalChunks, err)
	case res.Cancelled:
		record.Status = status.Cancelled
		logger.Infof("Download of %s cancelled after %d/%d chunks", target.FileID, res.CompletedChunks, res.TotalChunks)
	default:
		record.Status = status.Completed
		logger.Infof("Downloaded %s in %v using %d content URL(s)", target.FileID, res.Elapsed, cache.Refreshes())
	}

	m.save(record)

	return res, err
}

func (m *Manager) save(record *repository.Record) {
	if m.repo == nil {
		return
	}

	if err := m.repo.Save(record); err != nil {
		logger.Errorf("Failed to save transfer record %s: %v", record.ID, err)
	}
}

func transferSpec(target Target, settings Settings) transfer.Spec {
	return transfer.Spec{
		FileID:         target.FileID,
		TotalSize:      target.Size,
		ChunkSize:      settings.ChunkSize,
		MaxConcurrency: settings.MaxConcurrency,
		MaxRetries:     settings.MaxRetries,
	}
}

func localName(target Target) string {
	name := filepath.Base(strings.ReplaceAll(target.Name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		name = target.FileID
	}

	return name
}
