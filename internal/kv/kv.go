// Package kv provides the durable key-value document facility backing the
// state stores. Documents are whole JSON snapshots replaced on every write:
// there are no partial updates, and a write is not atomic with the in-memory
// mutation that triggered it, so a crash between the two loses the most
// recent mutation.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
