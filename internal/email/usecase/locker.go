package usecase

import "github.com/moby/locker"

// keyedLocker hands out one mutex per key and forgets keys nobody holds.
type keyedLocker struct {
	locker *locker.Locker
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locker: locker.New()}
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedLocker) Lock(key string) func() {
	k.locker.Lock(key)
	return func() {
		// only fails for a key that is not held
		_ = k.locker.Unlock(key)
	}
}

func threadKey(userID, threadID string) string {
	return "thread:" + userID + "/" + threadID
}

func messageKey(userID, messageID string) string {
	return "message:" + userID + "/" + messageID
}
