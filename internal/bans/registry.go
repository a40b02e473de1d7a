package bans

import (
	"context"
	"strings"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/infra/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry answers "may this user post" and records bans. Cached entries hold
// the user's active records, never a verdict, so expiry is always judged
// against the caller's clock.
type Registry struct {
	store         Store
	aside         *cache.AsidePattern
	cacheTTL      time.Duration
	defaultReason string
	logger        *zap.Logger
	now           func() time.Time
}

type Option func(*Registry)

func WithCache(aside *cache.AsidePattern, ttl time.Duration) Option {
	return func(r *Registry) {
		r.aside = aside
		r.cacheTTL = ttl
	}
}

func WithDefaultReason(reason string) Option {
	return func(r *Registry) {
		if reason = strings.TrimSpace(reason); reason != "" {
			r.defaultReason = reason
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(store Store, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:         store,
		defaultReason: DefaultReason,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func userKey(userID uuid.UUID) string {
	return "bans:user:" + userID.String()
}

func (r *Registry) userBans(ctx context.Context, userID uuid.UUID) ([]Ban, error) {
	return cache.GetOrLoad(ctx, r.aside, userKey(userID), r.cacheTTL, func(ctx context.Context) ([]Ban, error) {
		return r.store.ListActive(ctx, Filter{UserID: &userID})
	})
}

func (r *Registry) invalidate(ctx context.Context, userID uuid.UUID) {
	if err := r.aside.Invalidate(ctx, userKey(userID)); err != nil {
		r.logger.Warn("failed to invalidate ban cache", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func (r *Registry) IsRestricted(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	list, err := r.userBans(ctx, userID)
	if err != nil {
		return false, err
	}
	return Restricted(list, userID, now), nil
}

func (r *Registry) Status(ctx context.Context, userID uuid.UUID, now time.Time) (Status, error) {
	list, err := r.userBans(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(list, userID, now), nil
}

type BanRequest struct {
	TargetID      uuid.UUID
	Reason        string
	Permanent     bool
	DurationHours int
}

// Ban always writes a new record, even when the target is already banned.
func (r *Registry) Ban(ctx context.Context, by uuid.UUID, req BanRequest) (*Ban, error) {
	if req.TargetID == uuid.Nil {
		return nil, errors.BadRequest("target user is required")
	}
	if req.TargetID == by {
		return nil, errors.BadRequest("moderators cannot ban themselves")
	}
	if !req.Permanent && req.DurationHours <= 0 {
		return nil, errors.InvalidDuration("duration must be a positive number of hours")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = r.defaultReason
	}

	b := &Ban{
		BannedUserID:   req.TargetID,
		BannedByUserID: by,
		Reason:         reason,
		IsActive:       true,
	}
	if !req.Permanent {
		expires := r.now().UTC().Add(time.Duration(req.DurationHours) * time.Hour)
		b.ExpiresAt = &expires
	}

	if err := r.store.Create(ctx, b); err != nil {
		return nil, err
	}
	r.invalidate(ctx, req.TargetID)

	stored, err := r.store.Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	r.logger.Info("user banned",
		zap.String("ban_id", stored.ID.String()),
		zap.String("user_id", stored.BannedUserID.String()),
		zap.String("by", by.String()),
		zap.Bool("permanent", stored.IsPermanent()),
	)
	return stored, nil
}

// Unban deactivates one record. Unbanning an inactive record is a no-op.
func (r *Registry) Unban(ctx context.Context, banID uuid.UUID, by uuid.UUID) (*Ban, error) {
	b, err := r.store.Get(ctx, banID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return b, nil
	}

	inactive := false
	updated, err := r.store.Update(ctx, banID, Patch{IsActive: &inactive})
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, updated.BannedUserID)

	r.logger.Info("ban lifted",
		zap.String("ban_id", banID.String()),
		zap.String("user_id", updated.BannedUserID.String()),
		zap.String("by", by.String()),
	)
	return updated, nil
}

// Active lists the bans restricting someone at now, newest first.
func (r *Registry) Active(ctx context.Context, now time.Time) ([]Ban, error) {
	list, err := r.store.ListActive(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]Ban, 0, len(list))
	for _, b := range list {
		if b.Restricts(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Warm preloads the cached ban lists of every user with an active record.
func (r *Registry) Warm(ctx context.Context, warmer *cache.Warmer) (int, error) {
	if r.aside == nil || warmer == nil {
		return 0, nil
	}
	list, err := r.store.ListActive(ctx, Filter{})
	if err != nil {
		return 0, err
	}

	byUser := make(map[uuid.UUID][]Ban)
	for _, b := range list {
		byUser[b.BannedUserID] = append(byUser[b.BannedUserID], b)
	}
	entries := make(map[string]interface{}, len(byUser))
	for userID, bans := range byUser {
		entries[userKey(userID)] = bans
	}
	return warmer.Warm(ctx, entries, r.cacheTTL), nil
}
