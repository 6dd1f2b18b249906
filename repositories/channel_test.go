package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func TestChannelRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repo := NewChannelRepository(openTestDB(t), slog.Default())

	created, err := repo.Create("war-room", "alice", []string{"bob", "clara", "bob"})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("alice", created.AdminID)
	// Duplicate members collapse
	req.ElementsMatch([]string{"bob", "clara"}, created.Members)

	fetched, err := repo.Get(created.ID)
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("war-room", fetched.Name)
}

func TestChannelRepository_Get_Unknown_Channel(t *testing.T) {
	req := require.New(t)
	repo := NewChannelRepository(openTestDB(t), slog.Default())

	_, err := repo.Get(uuid.NewString())
	req.ErrorIs(err, errors.ErrChannelNotFound)

	_, err = repo.Members(uuid.NewString())
	req.ErrorIs(err, errors.ErrChannelNotFound)
}

func TestChannelRepository_IsMember(t *testing.T) {
	req := require.New(t)
	repo := NewChannelRepository(openTestDB(t), slog.Default())

	channel, err := repo.Create("general", "alice", []string{"bob"})
	req.NoError(err)

	ok, err := repo.IsMember(channel.ID, "bob")
	req.NoError(err)
	req.True(ok)

	// The admin is tracked separately and is not implicitly a member
	ok, err = repo.IsMember(channel.ID, "alice")
	req.NoError(err)
	req.False(ok)

	// An unknown channel is a plain non-membership
	ok, err = repo.IsMember(uuid.NewString(), "bob")
	req.NoError(err)
	req.False(ok)
}

func TestChannelRepository_ForUser_Ordered_By_Update(t *testing.T) {
	req := require.New(t)
	repo := NewChannelRepository(openTestDB(t), slog.Default())

	older, err := repo.Create("older", "alice", []string{"bob"})
	req.NoError(err)
	time.Sleep(5 * time.Millisecond)
	newer, err := repo.Create("newer", "clara", []string{"bob"})
	req.NoError(err)

	channels, err := repo.ForUser("bob")
	req.NoError(err)
	req.Equal([]string{newer.ID, older.ID}, lo.Map(channels, func(c domain.Channel, _ int) string {
		return c.ID
	}))

	// The admin sees their channel without being in the member set
	channels, err = repo.ForUser("alice")
	req.NoError(err)
	req.Len(channels, 1)
	req.Equal(older.ID, channels[0].ID)

	// A stranger sees nothing
	channels, err = repo.ForUser("nobody")
	req.NoError(err)
	req.Empty(channels)
}
