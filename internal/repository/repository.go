package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/NamanBalaji/bsfetch/internal/status"
)

// Record is the persisted history entry for one transfer.
type Record struct {
	ID              uuid.UUID     `json:"id"`
	FileID          string        `json:"fileId"`
	Name            string        `json:"name"`
	Source          string        `json:"source"`
	Destination     string        `json:"destination,omitempty"`
	Size            int64         `json:"size"`
	ChunkSize       int64         `json:"chunkSize"`
	TotalChunks     int           `json:"totalChunks"`
	CompletedChunks int           `json:"completedChunks"`
	Status          status.Status `json:"status"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      time.Time     `json:"finishedAt,omitempty"`
}

// Partial reports whether the record ended with some but not all chunks
// written to its destination.
func (r *Record) Partial() bool {
	return status.IsTerminal(r.Status) && r.Status != status.Completed && r.CompletedChunks > 0
}

type Repository interface {
	Save(record *Record) error
	Find(id uuid.UUID) (*Record, error)
	FindAll() ([]*Record, error)
	Delete(id uuid.UUID) error
}
