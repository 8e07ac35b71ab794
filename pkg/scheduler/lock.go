package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

const (
	lockKeyPrefix   = "scheduler:lock:"
	fenceKeyPrefix  = "scheduler:fence:"
)

// LockHandle is the JobLockHandle from the data model (spec §3).
type LockHandle struct {
	JobID        string
	InstanceID   string
	FencingToken int64
	TTL          time.Duration
	AcquiredAt   time.Time
}

// acquireLock attempts to take the exclusive lock for jobID via
// SET-IF-NOT-EXISTS with a TTL of timeout plus a safety margin, per
// spec §4.5 step 2. On success, it increments the job's fencing-token
// counter and returns a handle carrying the new token.
func acquireLock(ctx context.Context, store kvstore.Store, jobID, instanceID string, timeout time.Duration) (LockHandle, bool, error) {
	const safetyMargin = 5 * time.Second
	ttl := timeout + safetyMargin

	key := lockKeyPrefix + jobID
	ok, err := store.SetNX(ctx, key, []byte(instanceID), ttl)
	if err != nil {
		return LockHandle{}, false, fmt.Errorf("acquiring lock for job %s: %w", jobID, err)
	}
	if !ok {
		// Another instance holds it, or we already do — the caller
		// treats "already held by this instance" as a separate check
		// via ownsLock before calling this.
		return LockHandle{}, false, nil
	}

	token, err := store.Incr(ctx, fenceKeyPrefix+jobID)
	if err != nil {
		return LockHandle{}, false, fmt.Errorf("incrementing fencing token for job %s: %w", jobID, err)
	}

	return LockHandle{JobID: jobID, InstanceID: instanceID, FencingToken: token, TTL: ttl, AcquiredAt: time.Now()}, true, nil
}

// ownsLock reports whether this instance currently holds jobID's lock.
func ownsLock(ctx context.Context, store kvstore.Store, jobID, instanceID string) (bool, error) {
	raw, found, err := store.Get(ctx, lockKeyPrefix+jobID)
	if err != nil {
		return false, err
	}
	return found && string(raw) == instanceID, nil
}

// releaseLock drops jobID's lock if and only if this instance holds
// it, so a lock that has already expired and been taken by another
// instance is never accidentally released out from under them.
func releaseLock(ctx context.Context, store kvstore.Store, jobID, instanceID string) error {
	_, err := store.DeleteIfMatch(ctx, lockKeyPrefix+jobID, []byte(instanceID))
	return err
}
