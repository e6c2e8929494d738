package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/NamanBalaji/bsfetch/internal/chunk"
	"github.com/NamanBalaji/bsfetch/internal/transfer"
	"github.com/NamanBalaji/bsfetch/pkg/basespace"
)

const (
	retryAttempts  = 3
	maxConcurrency = transfer.DefaultMaxWorkers
	retryDelay     = 500 * time.Millisecond
	requestTimeout = 5 * time.Minute
	presignExpiry  = time.Hour

	fileMultipartSizeThreshold = chunk.DefaultChunkSize
)

var (
	downloadDir  = xdg.UserDirs.Download
	dataDir      = filepath.Join(xdg.DataHome, appName)
	databasePath = filepath.Join(dataDir, "history.db")
	logPath      = filepath.Join(dataDir, "bsfetch.log")
	apiURL       = basespace.DefaultAPIURL
	apiVersion   = basespace.DefaultVersion
)
