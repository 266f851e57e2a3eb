package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

// exportBatch caps how many fills a single export reads from the store.
const exportBatch = 10000

// Archiver periodically exports fills older than the retention window to
// object storage as JSON lines, then prunes the exported rows.
type Archiver struct {
	client    *Client
	fills     domain.FillStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewArchiver(client *Client, fills domain.FillStore, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		client:    client,
		fills:     fills,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on the configured interval until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveOnce exports everything past the retention cutoff and prunes it.
// It is a no-op when nothing has aged out.
func (a *Archiver) ArchiveOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-a.retention)

	fills, err := a.fills.ListBefore(ctx, cutoff, exportBatch)
	if err != nil {
		return fmt.Errorf("s3blob: list aged fills: %w", err)
	}
	if len(fills) == 0 {
		return nil
	}

	key := archiveKey(cutoff)
	if err := a.upload(ctx, key, fills); err != nil {
		return err
	}

	deleted, err := a.fills.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: prune exported fills: %w", err)
	}

	a.logger.Info("archived fills",
		slog.String("key", key),
		slog.Int("exported", len(fills)),
		slog.Int64("pruned", deleted))
	return nil
}

// upload writes the fills as JSON lines.
func (a *Archiver) upload(ctx context.Context, key string, fills []domain.Fill) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, f := range fills {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("s3blob: encode fill %s: %w", f.ID, err)
		}
	}

	return a.client.Put(ctx, key, "application/x-ndjson", &buf)
}

func archiveKey(cutoff time.Time) string {
	return fmt.Sprintf("fills/%s/fills-%d.jsonl",
		cutoff.UTC().Format("2006/01/02"), time.Now().UnixNano())
}
