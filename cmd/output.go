package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/NamanBalaji/bsfetch/internal/errors"
	"github.com/NamanBalaji/bsfetch/internal/progress"
)

const barWidth = 30

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func printSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func printError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

func printWarning(msg string) {
	fmt.Println(warnStyle.Render("! " + msg))
}

func renderBar(percent int) string {
	percent = max(0, min(percent, 100))
	filled := percent * barWidth / 100

	return barStyle.Render("[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]")
}

// failureHint turns a transfer error into a one-line explanation.
func failureHint(err error) string {
	var parts []string

	if idx, ok := errors.ChunkIndex(err); ok {
		parts = append(parts, fmt.Sprintf("chunk %d failed", idx))
	}

	if code, ok := errors.GetStatusCode(err); ok {
		parts = append(parts, fmt.Sprintf("HTTP %d", code))
	}

	switch {
	case errors.IsConfigurationError(err):
		parts = append(parts, "the file cannot be downloaded with these settings")
	case errors.IsNetworkError(err):
		parts = append(parts, "check the network connection and retry")
	case errors.IsIOError(err):
		parts = append(parts, "check the output directory")
	}

	return strings.Join(parts, ", ")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// progressPrinter draws one status line per file from hub events. On a
// terminal the line is redrawn in place; otherwise only every 10% step is
// printed.
type progressPrinter struct {
	events      <-chan progress.Event
	unsubscribe func()
	interactive bool
	done        chan struct{}

	mu     sync.Mutex
	names  map[string]string
	logged map[string]int
	drawn  map[string]chan struct{}
}

func newProgressPrinter(hub *progress.Hub) *progressPrinter {
	events, unsubscribe := hub.Subscribe(64)

	p := &progressPrinter{
		events:      events,
		unsubscribe: unsubscribe,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		done:        make(chan struct{}),
		names:       make(map[string]string),
		logged:      make(map[string]int),
		drawn:       make(map[string]chan struct{}),
	}

	go p.loop()

	return p
}

// Name sets the label shown for fileID and starts tracking its completion.
func (p *progressPrinter) Name(fileID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.names[fileID] = name
	p.drawn[fileID] = make(chan struct{})
	delete(p.logged, fileID)
}

// WaitDrawn blocks until the completing event of fileID has been drawn or
// the printer stops.
func (p *progressPrinter) WaitDrawn(fileID string) {
	p.mu.Lock()
	ch, ok := p.drawn[fileID]
	p.mu.Unlock()

	if !ok {
		return
	}

	select {
	case <-ch:
	case <-p.done:
	}
}

func (p *progressPrinter) markDrawn(fileID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch, ok := p.drawn[fileID]; ok {
		close(ch)
		delete(p.drawn, fileID)
	}
}

func (p *progressPrinter) loop() {
	defer close(p.done)

	for e := range p.events {
		p.mu.Lock()
		name := p.names[e.FileID]
		last, seen := p.logged[e.FileID]
		if !p.interactive && seen && e.Percent/10 == last/10 && !e.Done() {
			p.mu.Unlock()
			continue
		}
		p.logged[e.FileID] = e.Percent
		p.mu.Unlock()

		if name == "" {
			name = e.FileID
		}

		line := fmt.Sprintf("%s %s %3d%% %s %s",
			nameStyle.Render(name),
			renderBar(e.Percent),
			e.Percent,
			dimStyle.Render(fmt.Sprintf("%d/%d", e.CompletedChunks, e.TotalChunks)),
			dimStyle.Render(progress.FormatThroughput(e.Throughput)),
		)

		if p.interactive {
			fmt.Print("\r\033[K" + line)
			if e.Done() {
				fmt.Println()
			}
		} else {
			fmt.Println(line)
		}

		if e.Done() {
			p.markDrawn(e.FileID)
		}
	}
}

// Close stops listening and waits for pending lines to be drawn.
func (p *progressPrinter) Close() {
	p.unsubscribe()
	<-p.done
}

// Break ends an in-place line left unfinished by a failed or cancelled file.
func (p *progressPrinter) Break() {
	if p.interactive {
		fmt.Println()
	}
}
