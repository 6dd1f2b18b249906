package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"

	"chat-relay/domain"
)

// SearchHit is one full-text match with the stored fields a client needs to
// jump back into the right thread.
type SearchHit struct {
	MessageID string `json:"id"`
	SenderID  string `json:"sender_id"`
	Scope     string `json:"scope"`
	Body      string `json:"body"`
}

// SearchIndex maintains a bluge full-text index over persisted messages.
// It is fed asynchronously from the delivery pipeline and is strictly
// best-effort: the badger store stays the source of truth.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

// Index adds one persisted message to the index. The scope field groups a
// message under its thread: the normalized user pair for DIRECT, the channel
// id for CHANNEL.
func (s *SearchIndex) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("body", msg.Body).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("scope", Scope(msg)).StoreValue()).
		AddField(bluge.NewDateTimeField("at", msg.CreatedAt))

	return s.writer.Update(doc.ID(), doc)
}

// Search returns up to limit messages matching the terms, optionally
// restricted to one scope.
func (s *SearchIndex) Search(ctx context.Context, terms, scope string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Error("failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("body"))
	if scope != "" {
		query.AddMust(bluge.NewTermQuery(scope).SetField("scope"))
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "scope":
				hit.Scope = string(value)
			case "body":
				hit.Body = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Scope is the thread grouping key a message is indexed under.
func Scope(msg domain.Message) string {
	if msg.Kind == domain.KindChannel {
		return "ch:" + msg.ChannelID
	}
	low, high := orderPair(msg.SenderID, msg.RecipientID)
	return fmt.Sprintf("dm:%s:%s", low, high)
}
