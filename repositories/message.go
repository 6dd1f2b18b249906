package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

// MessageRepository persists every direct and channel message in BadgerDB.
//
// Keys embed a 19-digit zero-padded UnixNano so lexicographical iteration is
// chronological, with the message UUID as a collision disconnector if two
// messages land on the same nanosecond:
//
//	dm:{lowUser}:{highUser}:{timestamp_padded}:{uuid}
//	ch:{channelID}:{timestamp_padded}:{uuid}
//
// A small recency index backs the direct-thread contact list:
//
//	thread:{userID}:{peerID} -> timestamp_padded
//
// Ordering keys are store-assigned at write time, never client-assigned, so
// clock skew between clients cannot corrupt history order.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Store commits the message before returning. The write runs in its own
// goroutine so the caller's deadline is honored; a timed-out write may still
// land, which only means a redundant record the history fetch already
// tolerates (the send is reported failed and retried whole).
func (m *MessageRepository) Store(ctx context.Context, msg domain.Message) error {
	key, err := messageKey(msg)
	if err != nil {
		return err
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, value); err != nil {
				return err
			}
			if msg.Kind == domain.KindDirect {
				stamp := []byte(paddedNano(msg.CreatedAt))
				if err := txn.Set(threadKey(msg.SenderID, msg.RecipientID), stamp); err != nil {
					return err
				}
				return txn.Set(threadKey(msg.RecipientID, msg.SenderID), stamp)
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return errors.ErrStoreTimeout
		}
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, ctx.Err())
	}
}

// DirectHistory returns every message exchanged between the two users,
// oldest first. The pair is normalized so both participants read the same
// thread.
func (m *MessageRepository) DirectHistory(userA, userB string) ([]domain.Message, error) {
	low, high := orderPair(userA, userB)
	prefix := fmt.Sprintf("dm:%s:%s:", low, high)
	return m.scan(prefix)
}

// ChannelHistory returns every message of the channel, oldest first.
func (m *MessageRepository) ChannelHistory(channelID string) ([]domain.Message, error) {
	return m.scan(fmt.Sprintf("ch:%s:", channelID))
}

// Counterparts lists the users this user has exchanged direct messages with,
// most recent thread first.
func (m *MessageRepository) Counterparts(userID string) ([]domain.Contact, error) {
	prefix := []byte(fmt.Sprintf("thread:%s:", userID))
	var contacts []domain.Contact

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			peer := string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				nano, err := strconv.ParseInt(string(value), 10, 64)
				if err != nil {
					return err
				}
				contacts = append(contacts, domain.Contact{
					UserID:       peer,
					LastActivity: time.Unix(0, nano).UTC(),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].LastActivity.After(contacts[j].LastActivity)
	})
	return contacts, nil
}

// scan iterates a message prefix in key order, which is chronological thanks
// to the padded timestamp segment.
func (m *MessageRepository) scan(prefixStr string) ([]domain.Message, error) {
	prefix := []byte(prefixStr)
	var messages []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

func messageKey(msg domain.Message) ([]byte, error) {
	switch msg.Kind {
	case domain.KindDirect:
		low, high := orderPair(msg.SenderID, msg.RecipientID)
		return []byte(fmt.Sprintf("dm:%s:%s:%s:%s", low, high, paddedNano(msg.CreatedAt), msg.ID)), nil
	case domain.KindChannel:
		return []byte(fmt.Sprintf("ch:%s:%s:%s", msg.ChannelID, paddedNano(msg.CreatedAt), msg.ID)), nil
	default:
		return nil, errors.ErrInvalidKind
	}
}

func threadKey(owner, peer string) []byte {
	return []byte(fmt.Sprintf("thread:%s:%s", owner, peer))
}

func paddedNano(t time.Time) string {
	return fmt.Sprintf("%019d", t.UnixNano())
}

func orderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
