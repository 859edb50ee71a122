package auth

import (
	"context"
	"strings"

	"PPCollab/tools/errs"
	"PPCollab/tools/security"
)

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID string
	Active bool
}

// Verifier checks a bearer credential at handshake time. A nil error with
// Active=false means the token is genuine but the account is disabled.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// ActiveChecker reports whether a user account may hold a session.
type ActiveChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// JWTVerifier verifies HMAC-signed JWTs; the user id is the "sub" claim.
type JWTVerifier struct {
	opts   security.Options
	active ActiveChecker
}

// NewJWTVerifier builds a verifier. active may be nil, in which case every
// token that verifies is treated as an active session.
func NewJWTVerifier(opts security.Options, active ActiveChecker) *JWTVerifier {
	return &JWTVerifier{opts: opts, active: active}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errs.ErrTokenMissing.Wrap()
	}
	claims, err := security.Verify(v.opts, token)
	if err != nil {
		return Identity{}, err
	}
	uid := claims.Subject()
	if uid == "" {
		return Identity{}, errs.ErrTokenInvalid.WrapMsg("", "claim", "sub")
	}
	if v.active == nil {
		return Identity{UserID: uid, Active: true}, nil
	}
	ok, err := v.active.IsActive(ctx, uid)
	if err != nil {
		return Identity{}, errs.ErrTokenInvalid.WrapMsg("active check failed", "user", uid, "err", err)
	}
	return Identity{UserID: uid, Active: ok}, nil
}

// StaticVerifier maps fixed tokens to identities. Local runs and tests.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errs.ErrTokenMissing.Wrap()
	}
	id, ok := s[token]
	if !ok {
		return Identity{}, errs.ErrTokenInvalid.Wrap()
	}
	return id, nil
}

// Check runs v and folds "inactive" into an error so callers have a single
// failure branch.
func Check(ctx context.Context, v Verifier, token string) (Identity, error) {
	id, err := v.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if !id.Active {
		return Identity{}, errs.ErrUserInactive.WrapMsg("", "user", id.UserID)
	}
	return id, nil
}
