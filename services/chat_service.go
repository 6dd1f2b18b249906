// Package services exposes the chat operations the transports call: sending
// through the delivery engine, history and contact reads, channel
// management, search and attachment uploads.
package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/storage"
)

type ChatService struct {
	log         *slog.Logger
	sender      contract.ISender
	messages    contract.IMessageRepository
	channels    *repositories.ChannelRepository
	search      *repositories.SearchIndex
	attachments *storage.AttachmentStore
}

func NewChatService(log *slog.Logger, sender contract.ISender,
	messages contract.IMessageRepository, channels *repositories.ChannelRepository,
	search *repositories.SearchIndex, attachments *storage.AttachmentStore) *ChatService {
	return &ChatService{
		log:         log,
		sender:      sender,
		messages:    messages,
		channels:    channels,
		search:      search,
		attachments: attachments,
	}
}

// Send routes a message through the delivery engine on behalf of userID.
func (s *ChatService) Send(ctx context.Context, userID string, cmd domain.SendCommand) (domain.DeliveryReceipt, error) {
	return s.sender.Send(ctx, userID, cmd)
}

// DirectHistory returns the full thread between the caller and a counterpart,
// oldest first.
func (s *ChatService) DirectHistory(userID, counterpartID string) ([]domain.Message, error) {
	return s.messages.DirectHistory(userID, counterpartID)
}

// ChannelHistory returns a channel's messages oldest first. The admin reads
// it whether or not they appear in the member set; everyone else must be a
// member. An unknown channel surfaces as not found, not as a membership
// failure.
func (s *ChatService) ChannelHistory(channelID, userID string) ([]domain.Message, error) {
	channel, err := s.channels.Get(channelID)
	if err != nil {
		return nil, err
	}
	if userID != channel.AdminID && !lo.Contains(channel.Members, userID) {
		return nil, errors.ErrNotMember
	}
	return s.messages.ChannelHistory(channelID)
}

// Contacts lists the caller's direct counterparts, most recent thread first.
func (s *ChatService) Contacts(userID string) ([]domain.Contact, error) {
	return s.messages.Counterparts(userID)
}

// CreateChannel creates a channel administered by the caller. The admin is
// indexed for the caller's channel list and admitted to history reads even
// when the member set does not list them; sending still requires membership.
func (s *ChatService) CreateChannel(name, adminID string, members []string) (domain.Channel, error) {
	return s.channels.Create(name, adminID, members)
}

// UserChannels lists the channels the caller belongs to, most recently
// updated first.
func (s *ChatService) UserChannels(userID string) ([]domain.Channel, error) {
	return s.channels.ForUser(userID)
}

// Search runs a full-text query over indexed message bodies, optionally
// restricted to one thread scope.
func (s *ChatService) Search(ctx context.Context, terms, scope string, limit int) ([]repositories.SearchHit, error) {
	return s.search.Search(ctx, terms, scope, limit)
}

// SaveAttachment stores an upload and returns the opaque reference a message
// carries in its attachment field.
func (s *ChatService) SaveAttachment(filename string, r io.Reader) (storage.StoredFile, error) {
	return s.attachments.Save(filename, r)
}
