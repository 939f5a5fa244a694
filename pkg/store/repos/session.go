package repos

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/types"
)

// SessionRepo keeps admin sessions. Only token hashes are persisted.
type SessionRepo struct {
	base *BaseRepo[types.Session]
	now  func() time.Time
}

func NewSessionRepo(core store.Store) *SessionRepo {
	return &SessionRepo{
		base: NewBaseRepo[types.Session](core, store.SessionPrefix),
		now:  time.Now,
	}
}

// WithClock returns a copy of the repo that reads time from now.
func (r *SessionRepo) WithClock(now func() time.Time) *SessionRepo {
	return &SessionRepo{base: r.base, now: now}
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Issue creates a session valid for ttl. Returns the plaintext token once.
func (r *SessionRepo) Issue(ctx context.Context, ttl time.Duration) (*types.Session, string, error) {
	token := uuid.NewString()
	now := r.now().UTC()
	s := &types.Session{
		ID:        uuid.NewString(),
		TokenHash: hashSecret(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := r.base.Put(ctx, store.MakeSessionKey(s.TokenHash), s); err != nil {
		return nil, "", err
	}
	return s, token, nil
}

// Validate reports whether token belongs to a live session.
func (r *SessionRepo) Validate(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	s, err := r.base.Get(ctx, store.MakeSessionKey(hashSecret(token)))
	if store.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.Expired(r.now()), nil
}

// Revoke ends the session for token. Unknown tokens are ignored.
func (r *SessionRepo) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return r.base.Delete(ctx, store.MakeSessionKey(hashSecret(token)))
}

// PruneExpired deletes expired sessions and returns how many were removed.
func (r *SessionRepo) PruneExpired(ctx context.Context) (int, error) {
	sessions, err := r.base.List(ctx)
	if err != nil {
		return 0, err
	}
	now := r.now()
	removed := 0
	for _, s := range sessions {
		if !s.Expired(now) {
			continue
		}
		if err := r.base.Delete(ctx, store.MakeSessionKey(s.TokenHash)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
