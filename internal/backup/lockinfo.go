package backup

import (
	"regexp"
	"strings"

	"overwatch/internal/domain/model"
)

// The backup tool reports lock contention as free text. These patterns pin
// the message formats of the tool version we ship with; the fixtures in
// lockinfo_test.go must be updated in lockstep with any tool upgrade.
var (
	lockHolderRe = regexp.MustCompile(`PID (\d+) on (\S+) by (\S+)`)
	lockSinceRe  = regexp.MustCompile(`(?:locked since|lock was created at) (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)
	lockAgeRe    = regexp.MustCompile(`[,(]\s*([^,()]+?) ago`)
)

// ParseLockInfo extracts lock metadata from the backup tool's lock-error
// text. It returns false when the message does not describe a held
// repository lock.
func ParseLockInfo(message string) (*model.LockInfo, bool) {
	if !strings.Contains(message, "repository is already locked") {
		return nil, false
	}

	info := &model.LockInfo{}
	if m := lockHolderRe.FindStringSubmatch(message); m != nil {
		info.PID = m[1]
		info.Host = m[2]
		info.User = m[3]
	}
	if m := lockSinceRe.FindStringSubmatch(message); m != nil {
		info.LockedSince = m[1]
	}
	if m := lockAgeRe.FindStringSubmatch(message); m != nil {
		info.Age = strings.TrimSpace(m[1])
	}
	return info, true
}
