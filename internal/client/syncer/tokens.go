package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/calepin/calepin/internal/client/store"
)

// RefreshFunc is the external refresh-token exchange: it trades the current
// refresh token for a fresh pair. The identity provider owns this; the sync
// engine only invokes it.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

// StoreTokens adapts the local store and a RefreshFunc into the transport's
// token source. Rotations persist through the store, sealed at rest.
type StoreTokens struct {
	Store    *store.Store
	Exchange RefreshFunc
}

// AccessToken returns the current bearer token.
func (t *StoreTokens) AccessToken(ctx context.Context) (string, error) {
	ua, err := t.Store.Auth()
	if err != nil {
		return "", err
	}
	return ua.AccessToken, nil
}

// Refresh runs the exchange and persists the rotated pair.
func (t *StoreTokens) Refresh(ctx context.Context) error {
	if t.Exchange == nil {
		return errors.New("no refresh exchange configured")
	}
	ua, err := t.Store.Auth()
	if err != nil {
		return err
	}
	access, refresh, err := t.Exchange(ctx, ua.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh exchange: %w", err)
	}
	return t.Store.RotateTokens(access, refresh)
}
