package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

// ChannelRepository owns channel records and the membership index:
//
//	channel:{channelID}          -> channel record (JSON)
//	chanidx:{userID}:{channelID} -> empty (membership marker)
//
// The delivery core only reads it (Members, IsMember); creation belongs to
// the channel-management collaborators served by the REST surface.
type ChannelRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChannelRepository(db *badger.DB, log *slog.Logger) *ChannelRepository {
	return &ChannelRepository{db: db, log: log}
}

// Create stores a new channel. The admin is tracked separately and is always
// indexed so the channel shows up in their list, whether or not they are in
// the member set.
func (c *ChannelRepository) Create(name, adminID string, members []string) (domain.Channel, error) {
	now := time.Now().UTC()
	channel := domain.Channel{
		ID:        uuid.NewString(),
		Name:      name,
		AdminID:   adminID,
		Members:   lo.Uniq(members),
		CreatedAt: now,
		UpdatedAt: now,
	}

	value, err := json.Marshal(channel)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	indexed := lo.Uniq(append([]string{adminID}, channel.Members...))
	err = c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(channelKey(channel.ID), value); err != nil {
			return err
		}
		for _, userID := range indexed {
			if err := txn.Set(channelIndexKey(userID, channel.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return channel, nil
}

// Get returns the channel record or ErrChannelNotFound.
func (c *ChannelRepository) Get(channelID string) (domain.Channel, error) {
	var channel domain.Channel
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(channelKey(channelID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &channel)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Channel{}, errors.ErrChannelNotFound
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return channel, nil
}

// Members implements the directory read the delivery engine resolves
// channel recipients with.
func (c *ChannelRepository) Members(channelID string) ([]string, error) {
	channel, err := c.Get(channelID)
	if err != nil {
		return nil, err
	}
	return channel.Members, nil
}

// IsMember reports whether the user belongs to the channel's member set.
// An unknown channel is simply a non-membership.
func (c *ChannelRepository) IsMember(channelID, userID string) (bool, error) {
	members, err := c.Members(channelID)
	if err == errors.ErrChannelNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lo.Contains(members, userID), nil
}

// ForUser lists the channels the user administers or belongs to, most
// recently updated first.
func (c *ChannelRepository) ForUser(userID string) ([]domain.Channel, error) {
	prefix := []byte(fmt.Sprintf("chanidx:%s:", userID))
	var ids []string

	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	var channels []domain.Channel
	for _, id := range ids {
		channel, err := c.Get(id)
		if err == errors.ErrChannelNotFound {
			c.log.Warn("dangling channel index entry", "channel_id", id, "user_id", userID)
			continue
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].UpdatedAt.After(channels[j].UpdatedAt)
	})
	return channels, nil
}

func channelKey(channelID string) []byte {
	return []byte("channel:" + channelID)
}

func channelIndexKey(userID, channelID string) []byte {
	return []byte(fmt.Sprintf("chanidx:%s:%s", userID, channelID))
}
