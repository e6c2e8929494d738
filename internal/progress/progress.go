package progress

import (
	"fmt"
	"time"
)

// Progress is a snapshot emitted each time a chunk finishes.
type Progress struct {
	CompletedChunks   int
	TotalChunks       int
	LastChunkBytes    int64
	LastChunkDuration time.Duration
}

// Percent returns the integer percentage of completed chunks, truncated.
// A transfer with no chunks is complete.
func (p Progress) Percent() int {
	if p.TotalChunks <= 0 {
		return 100
	}

	return 100 * p.CompletedChunks / p.TotalChunks
}

// Throughput returns the last chunk's rate in bits per second.
func (p Progress) Throughput() float64 {
	ms := float64(p.LastChunkDuration) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}

	return 8000.0 * float64(p.LastChunkBytes) / ms
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d chunks (%d%%)", p.CompletedChunks, p.TotalChunks, p.Percent())
}

// Event is a Progress attributed to a file, as delivered to subscribers.
type Event struct {
	FileID          string
	Percent         int
	Throughput      float64
	CompletedChunks int
	TotalChunks     int
	Time            time.Time
}

// Done reports whether the event marks the end of a transfer.
func (e Event) Done() bool {
	return e.CompletedChunks >= e.TotalChunks
}

// FormatThroughput renders a bits-per-second rate with a binary unit.
func FormatThroughput(bps float64) string {
	units := []string{"bit/s", "Kbit/s", "Mbit/s", "Gbit/s"}

	i := 0
	for bps >= 1024 && i < len(units)-1 {
		bps /= 1024
		i++
	}

	return fmt.Sprintf("%.1f %s", bps, units[i])
}
