package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blobvault/blobvault/internal/logging"
	"github.com/blobvault/blobvault/internal/shared"
	"github.com/blobvault/blobvault/internal/store"
)

// OwnerIndex reports whether any stored object is owned by the given
// access key. Provided by the storage engine; the reaper uses it to spare
// sessions that still own data.
type OwnerIndex func(ctx context.Context, accessKey string) (bool, error)

// Service manages the session lifecycle: issuance, token verification,
// per-request resolution with monotonic level upgrades, and idle reaping.
type Service struct {
	sessions    store.Records[*Session]
	secretKey   []byte
	idleTTL     time.Duration
	ownsObjects OwnerIndex
	logger      logging.Logger
}

func NewService(sessions store.Records[*Session], secretKey []byte, idleTTL time.Duration, owns OwnerIndex, logger logging.Logger) *Service {
	return &Service{
		sessions:    sessions,
		secretKey:   secretKey,
		idleTTL:     idleTTL,
		ownsObjects: owns,
		logger:      logger.With("module", "auth"),
	}
}

// Issue creates and persists a fresh anonymous session.
func (s *Service) Issue(ctx context.Context) (*Session, error) {
	sess, err := NewSession()
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return sess, nil
}

// Sign produces the cookie token for a session.
func (s *Service) Sign(sess *Session) (string, error) {
	return SignToken(sess, s.secretKey)
}

// Resolve maps a presented cookie token to a stored session.
//
// A malformed token is reported as an error (the caller answers 400). A
// token whose signature fails, or one whose session record cannot be
// loaded, yields (nil, nil): the caller treats it as no session at all.
// When the token claims a higher level than the stored record, the record
// is upgraded in place and persisted; levels never go down.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*Session, error) {
	accessKey, claimedLevel, err := VerifyToken(tokenString, s.secretKey)
	if err != nil {
		if errors.Is(err, shared.ErrorMalformedToken) {
			return nil, err
		}
		s.logger.Warn(ctx, "token failed verification", "error", err.Error())
		return nil, nil
	}

	sess, err := s.sessions.Load(ctx, accessKey)
	if err != nil {
		s.logger.Warn(ctx, "session not loadable for verified token", "access_key", accessKey)
		return nil, nil
	}

	if claimedLevel > sess.AccessLevel {
		sess.AccessLevel = claimedLevel
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.logger.Error(ctx, "failed to persist session upgrade", "access_key", accessKey, "error", err.Error())
		}
	}

	return sess, nil
}

// Touch refreshes the session's recency timestamp and re-persists it.
func (s *Service) Touch(ctx context.Context, sess *Session) {
	sess.Touch()
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Error(ctx, "failed to persist session", "access_key", sess.AccessKey, "error", err.Error())
	}
}

// Reap deletes every session idle for longer than the TTL, unless it is
// Admin-level or still owns a stored object. Best effort: failures are
// logged and the sweep moves on.
func (s *Service) Reap(ctx context.Context) {
	it, err := s.sessions.List(ctx)
	if err != nil {
		s.logger.Warn(ctx, "session sweep failed to list", "error", err.Error())
		return
	}

	cutoff := time.Now().Unix() - int64(s.idleTTL.Seconds())

	for it.Next() {
		sess := it.Record()

		if sess.LastUsed >= cutoff {
			continue
		}
		if sess.AccessLevel >= LevelAdmin {
			continue
		}

		owned, err := s.ownsObjects(ctx, sess.AccessKey)
		if err != nil {
			s.logger.Warn(ctx, "session sweep owner check failed", "access_key", sess.AccessKey, "error", err.Error())
			continue
		}
		if owned {
			continue
		}

		if err := s.sessions.Delete(ctx, sess.AccessKey); err != nil {
			s.logger.Warn(ctx, "failed to delete idle session", "access_key", sess.AccessKey, "error", err.Error())
			continue
		}
		s.logger.Info(ctx, "deleted idle session", "access_key", sess.AccessKey)
	}

	if err := it.Err(); err != nil {
		s.logger.Warn(ctx, "session sweep stopped early", "error", err.Error())
	}
}
