package runner

import (
	"context"
	"hash/fnv"
	"sync"

	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

// Locker serializes applies against one eventable. unlock must be called
// exactly once after a successful Lock.
type Locker interface {
	Lock(ctx context.Context, ref id.Ref) (unlock func(), err error)
}

const numLockShards = 128

// ShardedLocker serializes applies within one process. Eventables are spread
// over a fixed set of mutexes by FNV-1a hash of their reference, so unrelated
// eventables rarely contend.
type ShardedLocker struct {
	shards [numLockShards]sync.Mutex
}

func NewShardedLocker() *ShardedLocker {
	return &ShardedLocker{}
}

func (l *ShardedLocker) Lock(ctx context.Context, ref id.Ref) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "apply aborted: context cancelled")
	}

	shard := &l.shards[shardFor(ref)]
	shard.Lock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		shard.Unlock()
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "apply aborted: context cancelled")
	}
	return shard.Unlock, nil
}

func shardFor(ref id.Ref) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref.String()))
	return h.Sum32() % numLockShards
}
