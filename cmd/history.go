package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/NamanBalaji/bsfetch/internal/download"
	"github.com/NamanBalaji/bsfetch/internal/repository"
	"github.com/NamanBalaji/bsfetch/internal/status"
)

var (
	historyLimit int
	historyClear bool
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(13)
)

var historyCmd = &cobra.Command{
	Use:   "history [transfer-id]",
	Short: "List recorded transfers, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		defer repo.Close()

		// Reading history needs no fetcher.
		m := download.NewManager(nil, repo, nil)

		if historyClear {
			removed, err := m.ClearHistory()
			if err != nil {
				return err
			}

			printSuccess(fmt.Sprintf("Removed %d finished transfer(s)", removed))

			return nil
		}

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id %q: %w", args[0], err)
			}

			r, err := m.Transfer(id)
			if err != nil {
				return err
			}

			fmt.Println(renderRecord(r))

			return nil
		}

		records, err := m.History()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println(dimStyle.Render("No transfers recorded"))
			return nil
		}

		if historyLimit > 0 && len(records) > historyLimit {
			records = records[len(records)-historyLimit:]
		}

		fmt.Println(renderHistory(records))

		return nil
	},
}

func statusLabel(r *repository.Record) string {
	label := status.String(r.Status)
	if r.Partial() {
		label += " (partial)"
	}

	return label
}

func renderRecord(r *repository.Record) string {
	rows := [][2]string{
		{"ID", r.ID.String()},
		{"File", r.FileID},
		{"Name", r.Name},
		{"Source", r.Source},
		{"Destination", r.Destination},
		{"Size", formatBytes(r.Size)},
		{"Chunk size", formatBytes(r.ChunkSize)},
		{"Chunks", fmt.Sprintf("%d/%d", r.CompletedChunks, r.TotalChunks)},
		{"Status", statusStyle(r.Status).Render(statusLabel(r))},
		{"Started", r.StartedAt.Local().Format(time.DateTime)},
	}

	if !r.FinishedAt.IsZero() {
		rows = append(rows, [2]string{"Finished", r.FinishedAt.Local().Format(time.DateTime)})
	}

	if r.Error != "" {
		rows = append(rows, [2]string{"Error", r.Error})
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = labelStyle.Render(row[0]) + row[1]
	}

	return strings.Join(lines, "\n")
}

func statusStyle(s status.Status) lipgloss.Style {
	switch s {
	case status.Completed:
		return successStyle
	case status.Failed:
		return errorStyle
	case status.Cancelled:
		return warnStyle
	default:
		return dimStyle
	}
}

func renderHistory(records []*repository.Record) string {
	rows := [][]string{{"ID", "STARTED", "NAME", "SOURCE", "SIZE", "CHUNKS", "STATUS"}}
	for _, r := range records {
		rows = append(rows, []string{
			r.ID.String(),
			r.StartedAt.Local().Format(time.DateTime),
			r.Name,
			r.Source,
			formatBytes(r.Size),
			fmt.Sprintf("%d/%d", r.CompletedChunks, r.TotalChunks),
			statusLabel(r),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			style := cellStyle.Width(widths[j] + 2)
			switch {
			case i == 0:
				style = style.Inherit(headerStyle)
			case j == len(row)-1:
				style = style.Inherit(statusStyle(records[i-1].Status))
			}
			cells[j] = style.Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))

		if i > 0 && records[i-1].Error != "" {
			b.WriteString("\n  " + dimStyle.Render(records[i-1].Error))
		}

		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the most recent n transfers")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Remove finished transfers from the history")
}
