package identity

import (
	"context"

	"locshare/internal/common/contextx"
	"locshare/internal/sharing/domain"
)

// FromContext resolves the current identity from the request context, where
// the auth middleware (HTTP) or the WS handshake put it. This keeps the
// engine free of any process-wide current user and lets multiple identities
// share one process.
type FromContext struct{}

var _ domain.IdentityProvider = FromContext{}

func (FromContext) CurrentUserID(ctx context.Context) (string, bool) {
	id := contextx.GetUserID(ctx)
	return id, id != ""
}

// Static always answers with a fixed user id. Meant for tests and one-user
// tooling.
type Static string

var _ domain.IdentityProvider = Static("")

func (s Static) CurrentUserID(ctx context.Context) (string, bool) {
	return string(s), s != ""
}

// None never has an identity.
type None struct{}

var _ domain.IdentityProvider = None{}

func (None) CurrentUserID(ctx context.Context) (string, bool) {
	return "", false
}
