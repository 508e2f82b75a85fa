package redisstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstate "collaborative-ideation/internal/infra/state/redis"
)

func newTestRepository(t *testing.T) (*redisstate.RedisStateRepository, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstate.NewRedisStateRepository(client, "test:"), client
}

func TestRedisStateRepository_NextMessageSeq_Monotonic(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	seq1, err := repo.NextMessageSeq(ctx, 1)
	require.NoError(t, err)
	seq2, err := repo.NextMessageSeq(ctx, 1)
	require.NoError(t, err)
	seq3, err := repo.NextMessageSeq(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)
	assert.Equal(t, uint64(3), seq3)
}

func TestRedisStateRepository_NextMessageSeq_PerRoomIsolation(t *testing.T) {
	// 不同房间的序号计数器互不影响
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.NextMessageSeq(ctx, 1)
	require.NoError(t, err)
	_, err = repo.NextMessageSeq(ctx, 1)
	require.NoError(t, err)

	seq, err := repo.NextMessageSeq(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq, "新房间的序号应从 1 开始")
}

func TestRedisStateRepository_IncrHumanMessageCount(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.IncrHumanMessageCount(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRedisStateRepository_PublishRoomEvent(t *testing.T) {
	repo, client := newTestRepository(t)
	ctx := context.Background()

	pubsub := client.Subscribe(ctx, redisstate.RoomChannel("test:", 3))
	t.Cleanup(func() { _ = pubsub.Close() })
	// 等待订阅建立
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.PublishRoomEvent(ctx, 3, []byte(`{"type":"message","seq":1}`)))

	select {
	case msg := <-pubsub.Channel():
		assert.JSONEq(t, `{"type":"message","seq":1}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("未在超时前收到房间事件")
	}
}

func TestRedisStateRepository_PublishLobbyEvent(t *testing.T) {
	repo, client := newTestRepository(t)
	ctx := context.Background()

	pubsub := client.Subscribe(ctx, redisstate.LobbyChannel("test:"))
	t.Cleanup(func() { _ = pubsub.Close() })
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.PublishLobbyEvent(ctx, []byte(`{"type":"rooms_changed"}`)))

	select {
	case msg := <-pubsub.Channel():
		assert.JSONEq(t, `{"type":"rooms_changed"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("未在超时前收到大厅事件")
	}
}

func TestRedisStateRepository_CheckRateLimit(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exceeded, err := repo.CheckRateLimit(ctx, "ratelimit:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, exceeded, "前 3 次请求不应超限")
	}

	exceeded, err := repo.CheckRateLimit(ctx, "ratelimit:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, exceeded, "第 4 次请求应超限")

	// 不同 key 独立计数
	exceeded, err = repo.CheckRateLimit(ctx, "ratelimit:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, exceeded)
}
