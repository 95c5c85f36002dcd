package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

func befriend(t *testing.T, env *testEnv, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	accepted, err := env.chat.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.False(t, accepted)
	require.NoError(t, env.chat.AcceptFriend(ctx, b.ID, a.ID))
}

func TestFriendRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	_, err := env.chat.SendFriendRequest(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, services.ErrSelfAction)
	_, err = env.chat.SendFriendRequest(ctx, alice.ID, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)

	accepted, err := env.chat.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, accepted)

	requests, err := env.chat.FriendRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, alice.ID, requests[0].ID)

	// A reverse request accepts the pending one.
	accepted, err = env.chat.SendFriendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, accepted)

	friends, err := env.chat.Friends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	requests, err = env.chat.FriendRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, requests)

	require.NoError(t, env.chat.RemoveFriend(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, env.chat.RemoveFriend(ctx, bob.ID, alice.ID), services.ErrNotFriends)
	assert.ErrorIs(t, env.chat.AcceptFriend(ctx, bob.ID, alice.ID), services.ErrNotFound)
}

func TestDeclineFriend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	_, err := env.chat.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, env.chat.DeclineFriend(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, env.chat.DeclineFriend(ctx, bob.ID, alice.ID), services.ErrNotFound)

	friends, err := env.chat.Friends(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestMessagesRequireFriendship(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	admin := env.signupAdmin(t, "admin")

	_, err := env.chat.SendMessage(ctx, alice.ID, &models.SendMessageRequest{ReceiverID: bob.ID, Content: "hi"})
	assert.ErrorIs(t, err, services.ErrNotFriends)

	_, err = env.chat.SendMessage(ctx, admin.ID, &models.SendMessageRequest{ReceiverID: bob.ID, Content: "welcome"})
	require.NoError(t, err)
	_, err = env.chat.SendMessage(ctx, bob.ID, &models.SendMessageRequest{ReceiverID: admin.ID, Content: "thanks"})
	require.NoError(t, err)

	_, err = env.chat.SendMessage(ctx, bob.ID, &models.SendMessageRequest{ReceiverID: bob.ID, Content: "me"})
	assert.ErrorIs(t, err, services.ErrSelfAction)
}

func TestUnreadAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	befriend(t, env, alice, bob)

	for _, text := range []string{"one", "two", "three"} {
		_, err := env.chat.SendMessage(ctx, alice.ID, &models.SendMessageRequest{ReceiverID: bob.ID, Content: text})
		require.NoError(t, err)
	}
	reply, err := env.chat.SendMessage(ctx, bob.ID, &models.SendMessageRequest{ReceiverID: alice.ID, Content: "hey"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), reply.Seq)

	convs, err := env.chat.Conversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(3), convs[0].Unread)
	assert.Equal(t, alice.ID, convs[0].Peer)
	assert.Equal(t, "hey", convs[0].LastMessage)

	cleared, err := env.chat.MarkRead(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	convs, err = env.chat.Conversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, convs[0].Unread)

	convs, err = env.chat.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), convs[0].Unread)

	msgs, err := env.chat.Messages(ctx, alice.ID, bob.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for _, m := range msgs {
		if m.SenderID == alice.ID {
			assert.True(t, m.Read, m.Content)
		} else {
			assert.False(t, m.Read, m.Content)
		}
	}

	cleared, err = env.chat.MarkRead(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, cleared)

	cleared, err = env.chat.MarkRead(ctx, bob.ID, "stranger")
	require.NoError(t, err)
	assert.Zero(t, cleared)
}
