package bans

import (
	"time"

	"github.com/google/uuid"
)

const DefaultReason = "no reason provided"

// Ban restricts a user from posting. Records are never deleted; unbanning
// flips IsActive. A ban whose ExpiresAt has passed stops restricting even
// while IsActive is still true.
type Ban struct {
	ID             uuid.UUID  `json:"id"`
	BannedUserID   uuid.UUID  `json:"banned_user_id"`
	BannedByUserID uuid.UUID  `json:"banned_by_user_id"`
	Reason         string     `json:"reason"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (b Ban) IsPermanent() bool {
	return b.ExpiresAt == nil
}

func (b Ban) Restricts(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// Restricted reports whether any ban in list restricts userID at now.
func Restricted(list []Ban, userID uuid.UUID, now time.Time) bool {
	for _, b := range list {
		if b.BannedUserID == userID && b.Restricts(now) {
			return true
		}
	}
	return false
}

// Status is a user's current standing.
type Status struct {
	UserID     uuid.UUID `json:"user_id"`
	Restricted bool      `json:"restricted"`
	// Until is nil while restricted by a permanent ban.
	Until *time.Time `json:"until,omitempty"`
	Bans  []Ban      `json:"bans"`
}

// StatusOf folds the user's bans into a Status. Until is the latest expiry of
// the restricting bans.
func StatusOf(list []Ban, userID uuid.UUID, now time.Time) Status {
	st := Status{UserID: userID, Bans: []Ban{}}
	permanent := false
	for _, b := range list {
		if b.BannedUserID != userID || !b.Restricts(now) {
			continue
		}
		st.Restricted = true
		st.Bans = append(st.Bans, b)
		if b.ExpiresAt == nil {
			permanent = true
			continue
		}
		if st.Until == nil || b.ExpiresAt.After(*st.Until) {
			t := *b.ExpiresAt
			st.Until = &t
		}
	}
	if permanent {
		st.Until = nil
	}
	return st
}
