package content

import (
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func post(handle string, age time.Duration) models.Post {
	return models.Post{ID: handle + age.String(), Author: models.PostAuthor{UserName: handle}, CreatedAt: now.Add(-age)}
}

func message(id int64, name string, username *string, age time.Duration) models.Message {
	return models.Message{
		MessageID: id,
		Date:      now.Add(-age),
		Sender:    models.Sender{ID: id * 100, Type: models.SenderUser, Name: name, Username: username},
	}
}

func TestFilterRecentWindowBounds(t *testing.T) {
	posts := []models.Post{
		post("a", time.Hour),
		post("b", 25*time.Hour),
		post("c", 24*time.Hour),
		post("d", -time.Minute),
		post("e", 0),
	}

	got := FilterRecent(posts, 24*time.Hour, now)

	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].Author.UserName)
	require.Equal(t, "c", got[1].Author.UserName)
	require.Equal(t, "e", got[2].Author.UserName)
}

func TestFilterRecentEmptyIsNotError(t *testing.T) {
	got := FilterRecent([]models.Post{post("old", 48*time.Hour)}, 24*time.Hour, now)
	require.Empty(t, got)
}

func TestFilterBySenderEmptyAllowlistIsIdentity(t *testing.T) {
	posts := []models.Post{post("a", time.Hour), post("b", time.Hour)}
	require.Equal(t, posts, FilterBySender(posts, nil))
	require.Equal(t, posts, FilterBySender(posts, []string{}))
}

func TestFilterBySenderPostsMatchHandleCaseInsensitive(t *testing.T) {
	posts := []models.Post{post("Alice", time.Hour), post("bob", time.Hour), post("carol", time.Hour)}

	got := FilterBySender(posts, []string{"ALICE", "carol"})

	require.Len(t, got, 2)
	require.Equal(t, "Alice", got[0].Author.UserName)
	require.Equal(t, "carol", got[1].Author.UserName)
}

func TestFilterBySenderMessagesMatchNameUsernameOrID(t *testing.T) {
	handle := "dave_x"
	msgs := []models.Message{
		message(1, "Alice", nil, time.Hour),
		message(2, "Bob", &handle, time.Hour),
		message(3, "Carol", nil, time.Hour),
		message(4, "Eve", nil, time.Hour),
	}

	got := FilterBySender(msgs, []string{"alice", "DAVE_X", "300"})

	require.Len(t, got, 3)
	require.Equal(t, int64(1), got[0].MessageID)
	require.Equal(t, int64(2), got[1].MessageID)
	require.Equal(t, int64(3), got[2].MessageID)
}

func TestSelectComposesRecentThenSender(t *testing.T) {
	msgs := []models.Message{
		message(1, "Alice", nil, 30*time.Hour),
		message(2, "Alice", nil, time.Hour),
		message(3, "Bob", nil, time.Hour),
	}

	got := Select(msgs, 24*time.Hour, now, []string{"alice"})

	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].MessageID)
}
