package workers

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/repositories"
)

// IndexerWorker feeds the search index from the delivery engine's pipeline.
// Indexing is a side effect: a message a crash keeps out of the index is
// still in the store and in every history read.
type IndexerWorker struct {
	log    *slog.Logger
	events <-chan event.DomainEvent
	index  *repositories.SearchIndex
}

func NewIndexerWorker(log *slog.Logger, events <-chan event.DomainEvent,
	index *repositories.SearchIndex) *IndexerWorker {
	return &IndexerWorker{log: log, events: events, index: index}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	w.log.Info("Starting indexer worker")
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-w.events:
			stored, ok := evt.(event.MessageStored)
			if !ok {
				continue
			}
			if err := w.index.Index(stored.Message); err != nil {
				w.log.Error("Failed to index message", "message_id", stored.Message.ID, "error", err)
			}
		}
	}
}
