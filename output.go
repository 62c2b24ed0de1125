package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/handlers"
	"github.com/Nexora-Open-Source/scrape-monitor/lifecycle"
	"github.com/Nexora-Open-Source/scrape-monitor/source"
	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/fatih/color"
)

var (
	pendingColor   = color.New(color.FgYellow)
	progressColor  = color.New(color.FgCyan)
	completedColor = color.New(color.FgGreen, color.Bold)
	failedColor    = color.New(color.FgRed, color.Bold)
	dimColor       = color.New(color.Faint)
)

func statusColor(status types.Status) *color.Color {
	switch status {
	case types.StatusPending:
		return pendingColor
	case types.StatusInProgress:
		return progressColor
	case types.StatusCompleted:
		return completedColor
	case types.StatusFailed:
		return failedColor
	}
	return dimColor
}

func phaseColor(phase lifecycle.Phase) *color.Color {
	switch phase {
	case lifecycle.PhaseCompleted:
		return completedColor
	case lifecycle.PhaseFailed, lifecycle.PhaseErrored:
		return failedColor
	case lifecycle.PhaseFetching:
		return progressColor
	}
	return pendingColor
}

// snapshotPrinter prints a line whenever the phase or status changes
type snapshotPrinter struct {
	out    io.Writer
	phase  lifecycle.Phase
	status types.Status
}

func newSnapshotPrinter(out io.Writer) *snapshotPrinter {
	return &snapshotPrinter{out: out}
}

func (p *snapshotPrinter) Print(snap lifecycle.Snapshot) {
	if snap.Phase == p.phase && snap.Status == p.status {
		return
	}
	p.phase, p.status = snap.Phase, snap.Status

	taskID := "-"
	if snap.TrackedTaskID != nil {
		taskID = fmt.Sprintf("%d", *snap.TrackedTaskID)
	}
	status := string(snap.Status)
	if status == "" {
		status = "unknown"
	}
	fmt.Fprintf(p.out, "%s task %s  %s  %s\n",
		dimColor.Sprint(snap.UpdatedAt.Format(time.TimeOnly)),
		taskID,
		phaseColor(snap.Phase).Sprintf("%-10s", snap.Phase),
		statusColor(snap.Status).Sprint(status),
	)
}

func printTask(out io.Writer, task *types.Task) {
	fmt.Fprintf(out, "created task %d for %s (%s)\n", task.ID, task.URL, statusColor(task.Status).Sprint(task.Status))
}

func printResult(out io.Writer, snap lifecycle.Snapshot) {
	if snap.Error != nil {
		fmt.Fprintf(out, "%s %s: %s\n", failedColor.Sprint("error"), snap.Error.Kind, snap.Error.Message)
		return
	}
	if snap.Result == nil {
		return
	}
	content := snap.Result.Content
	fmt.Fprintf(out, "%s %q\n", completedColor.Sprint("title"), content.Title)
	fmt.Fprintf(out, "  url     %s\n", content.URL)
	fmt.Fprintf(out, "  links   %d\n", content.LinksCount)
	fmt.Fprintf(out, "  images  %d\n", content.ImagesCount)
	if content.MetaDescription != nil && *content.MetaDescription != "" {
		fmt.Fprintf(out, "  about   %s\n", *content.MetaDescription)
	}
}

func printTaskTable(out io.Writer, tasks []types.Task) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tURL")
	for _, task := range tasks {
		created := "-"
		if !task.CreatedAt.IsZero() {
			created = task.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", task.ID, statusColor(task.Status).Sprint(task.Status), created, task.URL)
	}
	tw.Flush()
}

func printFeedResults(out io.Writer, feeds []source.FeedResult) {
	for _, feed := range feeds {
		if feed.Err != nil {
			fmt.Fprintf(out, "%s %s: %s\n", failedColor.Sprint("feed failed"), feed.FeedURL, feed.Error)
			continue
		}
		fmt.Fprintf(out, "read %d links from %s\n", len(feed.Links), feed.FeedURL)
	}
}

func printBatch(out io.Writer, summary *types.BatchSummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTASK\tURL\tERROR")
	for _, job := range summary.Jobs {
		c := pendingColor
		switch job.Status {
		case types.BatchJobSubmitted:
			c = completedColor
		case types.BatchJobFailed:
			c = failedColor
		}
		task := "-"
		if job.TaskID != 0 {
			task = fmt.Sprintf("%d", job.TaskID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Sprint(job.Status), task, job.URL, job.Error)
	}
	tw.Flush()
	fmt.Fprintf(out, "%s: %d submitted, %d failed, %d pending\n", summary.BatchID, summary.Submitted, summary.Failed, summary.Pending)
}

// batchReader is the part of the batch processor waitForBatch needs
type batchReader interface {
	GetBatch(batchID string) (*types.BatchSummary, bool)
}

var _ batchReader = (*handlers.BatchProcessor)(nil)

// waitForBatch polls the processor until every job of the batch finished
func waitForBatch(ctx context.Context, batches batchReader, batchID string, timeout time.Duration) (*types.BatchSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		summary, ok := batches.GetBatch(batchID)
		if !ok {
			return nil, fmt.Errorf("no urls of batch %s could be queued", batchID)
		}
		if summary.Done {
			return summary, nil
		}
		select {
		case <-ctx.Done():
			return summary, fmt.Errorf("batch %s not finished: %w", batchID, ctx.Err())
		case <-ticker.C:
		}
	}
}
