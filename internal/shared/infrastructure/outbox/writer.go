package outbox

import (
	"context"
	"time"
)

// Writer satisfies eventbus.Publisher by appending to the outbox. The
// Processor delivers what it writes.
type Writer struct {
	repo Repository
	now  func() time.Time
}

// NewWriter creates a writer over repo.
func NewWriter(repo Repository) *Writer {
	return &Writer{repo: repo, now: time.Now}
}

// Publish stores the event for later delivery.
func (w *Writer) Publish(ctx context.Context, routingKey string, payload []byte) error {
	msg, err := NewMessage(routingKey, payload, w.now())
	if err != nil {
		return err
	}
	return w.repo.Save(ctx, msg)
}

// Close is a no-op; the repository's database is owned by the caller.
func (w *Writer) Close() error {
	return nil
}
