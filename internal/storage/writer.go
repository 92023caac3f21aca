package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Container is the item-level API of a document store.
type Container interface {
	CreateItem(ctx context.Context, rec Record) error
	ListItemIDs(ctx context.Context) ([]string, error)
	DeleteItem(ctx context.Context, id string) error
}

// Writer persists records one create request at a time.
type Writer struct {
	container Container
	logger    *slog.Logger
}

// NewWriter creates a Writer for container.
func NewWriter(container Container, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{container: container, logger: logger}
}

// Write creates each record in order and returns how many were written. It
// stops at the first failure; records already written stay written.
func (w *Writer) Write(ctx context.Context, records []Record) (int, error) {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := w.container.CreateItem(ctx, rec); err != nil {
			w.logger.Error("failed to write record", "id", rec.ID, "written", i, "error", err)
			return i, fmt.Errorf("write record %d of %d: %w", i+1, len(records), err)
		}
	}

	w.logger.Info("records written", "count", len(records))
	return len(records), nil
}

// Clear deletes every record in the container and returns how many were
// deleted. It is never called implicitly by Write.
func (w *Writer) Clear(ctx context.Context) (int, error) {
	ids, err := w.container.ListItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}

	for i, id := range ids {
		if err := w.container.DeleteItem(ctx, id); err != nil {
			return i, fmt.Errorf("delete record %s: %w", id, err)
		}
	}

	w.logger.Info("container cleared", "deleted", len(ids))
	return len(ids), nil
}
