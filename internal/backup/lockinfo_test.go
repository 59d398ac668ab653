package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLockInfo(t *testing.T) {
	message := "Fatal: unable to create lock in backend: repository is already locked by PID 1234 on backup-host by root (UID 0, GID 0)\n" +
		"lock was created at 2024-01-15 10:30:00 (5 minutes ago)\n" +
		"storage ID 4cf9b124"

	info, ok := ParseLockInfo(message)
	require.True(t, ok)

	assert.Equal(t, "1234", info.PID)
	assert.Equal(t, "backup-host", info.Host)
	assert.Equal(t, "root", info.User)
	assert.Equal(t, "2024-01-15 10:30:00", info.LockedSince)
	assert.Equal(t, "5 minutes", info.Age)
}

func TestParseLockInfoAlternativeSincePhrase(t *testing.T) {
	message := "repository is already locked exclusively by PID 99 on otherhost by deploy (UID 1000, GID 1000), locked since 2024-03-01 08:00:00, 2 hours ago"

	info, ok := ParseLockInfo(message)
	require.True(t, ok)
	assert.Equal(t, "99", info.PID)
	assert.Equal(t, "otherhost", info.Host)
	assert.Equal(t, "deploy", info.User)
	assert.Equal(t, "2024-03-01 08:00:00", info.LockedSince)
	assert.Equal(t, "2 hours", info.Age)
}

func TestParseLockInfoNotALockError(t *testing.T) {
	for _, message := range []string{
		"",
		"Fatal: wrong password or no key found",
		"Is there a repository at the following location?",
	} {
		_, ok := ParseLockInfo(message)
		assert.False(t, ok, message)
	}
}

func TestParseLockInfoPartialMetadata(t *testing.T) {
	// A lock message with none of the expected detail still classifies as
	// locked; the fields just stay empty.
	info, ok := ParseLockInfo("repository is already locked")
	require.True(t, ok)
	assert.Empty(t, info.PID)
	assert.Empty(t, info.Age)
}
