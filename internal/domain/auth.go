package domain

import "context"

// Authorizer answers "did account authorize this payload". Privileged
// operations (settle, archive, parameter updates) verify the caller's
// signature over a canonical payload before touching state; the engine never
// reads ambient caller identity.
type Authorizer interface {
	// Verify returns nil if sig is a valid signature by account over
	// payload, ErrAuthDenied otherwise.
	Verify(ctx context.Context, account string, payload, sig []byte) error
}
