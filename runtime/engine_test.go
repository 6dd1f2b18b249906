package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
)

type engineFixture struct {
	engine   *Engine
	registry *Registry
	messages *repositories.MessageRepository
	channels *repositories.ChannelRepository
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	registry := NewRegistry(log)
	messages := repositories.NewMessageRepository(db, log)
	channels := repositories.NewChannelRepository(db, log)
	engine := NewEngine(log, messages, channels, registry,
		observability.NewMonitoring(), 16, time.Second, 100*time.Millisecond)
	return engineFixture{engine: engine, registry: registry, messages: messages, channels: channels}
}

func (f engineFixture) connect(t *testing.T, userID string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	require.NoError(t, f.registry.Register(userID, connectionFor(userID, sink)))
	return sink
}

func receivedBodies(events []event.DomainEvent) []string {
	var bodies []string
	for _, e := range events {
		if received, ok := e.(event.MessageReceived); ok {
			bodies = append(bodies, received.Message.Body)
		}
	}
	return bodies
}

func TestEngine_Send_Direct_Pushes_To_The_Online_Recipient(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	// Given alice is online
	aliceSink := f.connect(t, "alice")

	// When bob sends her a direct message
	receipt, err := f.engine.Send(context.Background(), "bob", domain.SendCommand{
		Kind:   domain.KindDirect,
		Target: "alice",
		Body:   "hi",
	})
	req.NoError(err)

	// Then the receipt reports the live delivery
	req.Equal([]string{"alice"}, receipt.Delivered)
	req.Equal([]string{"hi"}, receivedBodies(aliceSink.Events()))

	// And the message is durable regardless
	history, err := f.messages.DirectHistory("alice", "bob")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(receipt.MessageID, history[0].ID)
	req.Equal("bob", history[0].SenderID)
}

func TestEngine_Send_Direct_To_An_Offline_Recipient_Still_Persists(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	receipt, err := f.engine.Send(context.Background(), "bob", domain.SendCommand{
		Kind:   domain.KindDirect,
		Target: "alice",
		Body:   "see you later",
	})
	req.NoError(err)
	req.Empty(receipt.Delivered)

	history, err := f.messages.DirectHistory("bob", "alice")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("see you later", history[0].Body)
}

func TestEngine_Send_Treats_A_Failing_Sink_As_Offline(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	// Given alice's connection no longer accepts events
	sink := &recordingSink{failing: true}
	req.NoError(f.registry.Register("alice", connectionFor("alice", sink)))

	receipt, err := f.engine.Send(context.Background(), "bob", domain.SendCommand{
		Kind:   domain.KindDirect,
		Target: "alice",
		Body:   "anyone there?",
	})

	// Then the send still succeeds, undelivered
	req.NoError(err)
	req.Empty(receipt.Delivered)

	// And alice finds the message in history on her next fetch
	history, err := f.messages.DirectHistory("alice", "bob")
	req.NoError(err)
	req.Len(history, 1)
}

func TestEngine_Send_Channel_Fans_Out_To_Online_Members_Only(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	channel, err := f.channels.Create("general", "alice", []string{"alice", "bob", "dave"})
	req.NoError(err)

	// bob is online, dave is offline, eve is online but not a member
	bobSink := f.connect(t, "bob")
	eveSink := f.connect(t, "eve")

	receipt, err := f.engine.Send(context.Background(), "alice", domain.SendCommand{
		Kind:   domain.KindChannel,
		Target: channel.ID,
		Body:   "standup in five",
	})
	req.NoError(err)

	// Only the online member receives a push; the sender is never echoed
	req.Equal([]string{"bob"}, receipt.Delivered)
	req.Equal([]string{"standup in five"}, receivedBodies(bobSink.Events()))
	req.Empty(eveSink.Events())

	// All members, online or not, share the same durable history
	history, err := f.messages.ChannelHistory(channel.ID)
	req.NoError(err)
	req.Len(history, 1)
}

func TestEngine_Send_Channel_By_A_Non_Member_Persists_Nothing(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	channel, err := f.channels.Create("private", "alice", []string{"alice", "bob"})
	req.NoError(err)
	bobSink := f.connect(t, "bob")

	_, err = f.engine.Send(context.Background(), "mallory", domain.SendCommand{
		Kind:   domain.KindChannel,
		Target: channel.ID,
		Body:   "let me in",
	})
	req.ErrorIs(err, errors.ErrNotMember)

	// The rejection leaves no trace: nothing pushed, nothing stored
	req.Empty(bobSink.Events())
	history, err := f.messages.ChannelHistory(channel.ID)
	req.NoError(err)
	req.Empty(history)
}

func TestEngine_Send_To_An_Unknown_Channel(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	_, err := f.engine.Send(context.Background(), "alice", domain.SendCommand{
		Kind:   domain.KindChannel,
		Target: "no-such-channel",
		Body:   "hello?",
	})
	req.ErrorIs(err, errors.ErrChannelNotFound)
}

func TestEngine_Send_Rejects_Malformed_Commands(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Send(ctx, "alice", domain.SendCommand{
		Kind: domain.KindDirect, Target: "bob",
	})
	req.ErrorIs(err, errors.ErrEmptyMessage)

	_, err = f.engine.Send(ctx, "alice", domain.SendCommand{
		Kind: "BROADCAST", Target: "bob", Body: "hi",
	})
	req.ErrorIs(err, errors.ErrInvalidKind)

	_, err = f.engine.Send(ctx, "alice", domain.SendCommand{
		Kind: domain.KindDirect, Body: "hi",
	})
	req.ErrorIs(err, errors.ErrBadTarget)

	// An attachment-only message is a valid message
	_, err = f.engine.Send(ctx, "alice", domain.SendCommand{
		Kind: domain.KindDirect, Target: "bob", Attachment: "uploads/42/report.pdf",
	})
	req.NoError(err)
}

func TestEngine_Send_Preserves_Per_Sender_Order(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		_, err := f.engine.Send(ctx, "alice", domain.SendCommand{
			Kind: domain.KindDirect, Target: "bob", Body: body,
		})
		req.NoError(err)
	}

	history, err := f.messages.DirectHistory("alice", "bob")
	req.NoError(err)
	req.Equal([]string{"first", "second", "third"}, lo.Map(history, func(m domain.Message, _ int) string {
		return m.Body
	}))
}

func TestEngine_Send_Emits_A_Stored_Event_On_The_Pipeline(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	receipt, err := f.engine.Send(context.Background(), "alice", domain.SendCommand{
		Kind: domain.KindDirect, Target: "bob", Body: "index me",
	})
	req.NoError(err)

	select {
	case evt := <-f.engine.Pipeline():
		stored, ok := evt.(event.MessageStored)
		req.True(ok)
		req.Equal(receipt.MessageID, stored.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("no event on the pipeline")
	}
}

func TestEngine_Send_Never_Pushes_When_The_Store_Fails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().
		Store(gomock.Any(), gomock.Any()).
		Return(errors.ErrStoreUnavailable)

	log := slog.Default()
	registry := NewRegistry(log)
	engine := NewEngine(log, messages, mocks.NewMockIDirectory(ctrl), registry,
		observability.NewMonitoring(), 16, time.Second, 100*time.Millisecond)

	// Given alice is online and ready to receive
	aliceSink := &recordingSink{}
	req.NoError(registry.Register("alice", connectionFor("alice", aliceSink)))

	_, err := engine.Send(context.Background(), "bob", domain.SendCommand{
		Kind: domain.KindDirect, Target: "alice", Body: "hi",
	})

	// Then the error surfaces and no push was ever attempted
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Empty(aliceSink.Events())
}
