package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/roastline/internal/kv"
)

func TestRedis_GetSet(t *testing.T) {
	s := makeRedis(t)

	_, err := s.Get(context.Background(), "roastline:missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	err = s.Set(context.Background(), "roastline:auth", []byte(`{"user":null}`))
	require.NoError(t, err)

	b, err := s.Get(context.Background(), "roastline:auth")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"user":null}`), b)
}

func TestRedis_SetReplacesWholeDocument(t *testing.T) {
	s := makeRedis(t)

	require.NoError(t, s.Set(context.Background(), "k", []byte("first version")))
	require.NoError(t, s.Set(context.Background(), "k", []byte("second")))

	b, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), b)
}

func TestMemory_GetSet(t *testing.T) {
	s := kv.NewMemory()

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))

	b, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), b)

	// Mutating the returned copy must not leak into the store.
	b[0] = 'x'
	b2, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), b2)
}

func makeRedis(t *testing.T) *kv.Redis {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return kv.NewRedis(rc)
}
