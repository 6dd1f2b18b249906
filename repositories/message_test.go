package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func directMessage(sender, recipient, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:          uuid.New(),
		Kind:        domain.KindDirect,
		SenderID:    sender,
		RecipientID: recipient,
		Body:        body,
		CreatedAt:   at,
	}
}

func channelMessage(sender, channelID, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Kind:      domain.KindChannel,
		SenderID:  sender,
		ChannelID: channelID,
		Body:      body,
		CreatedAt: at,
	}
}

func TestMessageRepository_DirectHistory_Is_Chronological(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	at := time.Now().UTC()

	// Given messages stored out of wall-clock order
	second := directMessage("alice", "bob", "second", at.Add(time.Minute))
	first := directMessage("bob", "alice", "first", at)
	req.NoError(repo.Store(ctx, second))
	req.NoError(repo.Store(ctx, first))

	// When either participant fetches the thread
	history, err := repo.DirectHistory("alice", "bob")
	req.NoError(err)

	// Then messages come back oldest first
	req.Equal([]string{"first", "second"}, lo.Map(history, func(m domain.Message, _ int) string {
		return m.Body
	}))

	// And the pair is normalized: both directions read the same thread
	mirrored, err := repo.DirectHistory("bob", "alice")
	req.NoError(err)
	req.Equal(history, mirrored)
}

func TestMessageRepository_DirectHistory_Is_Scoped_To_The_Pair(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	at := time.Now().UTC()

	req.NoError(repo.Store(ctx, directMessage("alice", "bob", "for bob", at)))
	req.NoError(repo.Store(ctx, directMessage("alice", "clara", "for clara", at.Add(time.Second))))

	history, err := repo.DirectHistory("alice", "bob")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("for bob", history[0].Body)
}

func TestMessageRepository_ChannelHistory(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	channelID := uuid.NewString()
	at := time.Now().UTC()

	for i, body := range []string{"one", "two", "three"} {
		req.NoError(repo.Store(ctx, channelMessage("alice", channelID, body, at.Add(time.Duration(i)*time.Second))))
	}
	req.NoError(repo.Store(ctx, channelMessage("alice", uuid.NewString(), "elsewhere", at)))

	history, err := repo.ChannelHistory(channelID)
	req.NoError(err)
	req.Equal([]string{"one", "two", "three"}, lo.Map(history, func(m domain.Message, _ int) string {
		return m.Body
	}))
}

func TestMessageRepository_Counterparts_Ordered_By_Recency(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	at := time.Now().UTC()

	// Given alice talked to bob, then later to clara
	req.NoError(repo.Store(ctx, directMessage("alice", "bob", "old thread", at)))
	req.NoError(repo.Store(ctx, directMessage("clara", "alice", "new thread", at.Add(time.Hour))))

	contacts, err := repo.Counterparts("alice")
	req.NoError(err)

	// Then the most recent counterpart comes first
	req.Equal([]string{"clara", "bob"}, lo.Map(contacts, func(c domain.Contact, _ int) string {
		return c.UserID
	}))

	// And the recency moves when the older thread gets a new message
	req.NoError(repo.Store(ctx, directMessage("alice", "bob", "revived", at.Add(2*time.Hour))))
	contacts, err = repo.Counterparts("alice")
	req.NoError(err)
	req.Equal("bob", contacts[0].UserID)
}

func TestMessageRepository_Read_Your_Writes(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	msg := directMessage("alice", "bob", "hi", time.Now().UTC())
	req.NoError(repo.Store(context.Background(), msg))

	// A fetch immediately after a persisted send must include it
	history, err := repo.DirectHistory("alice", "bob")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(msg.ID, history[0].ID)
	req.Equal("hi", history[0].Body)
}
