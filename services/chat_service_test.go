package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
)

func newServiceFixture(t *testing.T, ctrl *gomock.Controller) (*ChatService, *repositories.MessageRepository, *repositories.ChannelRepository, *mocks.MockISender) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages := repositories.NewMessageRepository(db, log)
	channels := repositories.NewChannelRepository(db, log)
	sender := mocks.NewMockISender(ctrl)
	service := NewChatService(log, sender, messages, channels, nil, nil)
	return service, messages, channels, sender
}

func TestChatService_ChannelHistory_Is_Members_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service, messages, channels, _ := newServiceFixture(t, ctrl)

	channel, err := channels.Create("general", "alice", []string{"alice", "bob"})
	req.NoError(err)
	req.NoError(messages.Store(context.Background(), domain.Message{
		ID:        uuid.New(),
		Kind:      domain.KindChannel,
		SenderID:  "alice",
		ChannelID: channel.ID,
		Body:      "welcome",
		CreatedAt: time.Now().UTC(),
	}))

	// A member reads the history
	history, err := service.ChannelHistory(channel.ID, "bob")
	req.NoError(err)
	req.Len(history, 1)

	// An outsider is refused
	_, err = service.ChannelHistory(channel.ID, "mallory")
	req.ErrorIs(err, errors.ErrNotMember)
}

func TestChatService_ChannelHistory_Admits_An_Unlisted_Admin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service, messages, channels, _ := newServiceFixture(t, ctrl)

	// Given alice created a channel without listing herself as a member
	channel, err := channels.Create("announcements", "alice", []string{"bob"})
	req.NoError(err)
	req.NotContains(channel.Members, "alice")
	req.NoError(messages.Store(context.Background(), domain.Message{
		ID:        uuid.New(),
		Kind:      domain.KindChannel,
		SenderID:  "bob",
		ChannelID: channel.ID,
		Body:      "first post",
		CreatedAt: time.Now().UTC(),
	}))

	// Then she still reads the history of her own channel
	history, err := service.ChannelHistory(channel.ID, "alice")
	req.NoError(err)
	req.Len(history, 1)

	// And it shows up in her channel list too
	listed, err := channels.ForUser("alice")
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(channel.ID, listed[0].ID)
}

func TestChatService_Send_Delegates_To_The_Engine(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service, _, _, sender := newServiceFixture(t, ctrl)

	cmd := domain.SendCommand{Kind: domain.KindDirect, Target: "bob", Body: "hi"}
	receipt := domain.DeliveryReceipt{MessageID: uuid.New(), Delivered: []string{"bob"}}
	sender.EXPECT().
		Send(gomock.Any(), "alice", cmd).
		Return(receipt, nil)

	got, err := service.Send(context.Background(), "alice", cmd)
	req.NoError(err)
	req.Equal(receipt, got)
}
