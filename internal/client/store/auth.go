package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoAuth is returned when no account is signed in on this device.
var ErrNoAuth = errors.New("no account signed in")

// UserAuth is the decrypted login state for the current account.
type UserAuth struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    int64
}

// SetTokens stores the signed-in account, sealing both tokens with the
// device-bound key. Replaces any previous account.
func (s *Store) SetTokens(userID, email, accessToken, refreshToken string) error {
	sealedAccess, err := s.seal.Seal([]byte(accessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := s.seal.Seal([]byte(refreshToken))
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO user_auth (id, user_id, email, access_token, refresh_token, is_current, updated_at)
		VALUES (1, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			is_current = 1,
			updated_at = excluded.updated_at`,
		userID, email, sealedAccess, sealedRefresh, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store auth: %w", err)
	}
	return nil
}

// Auth returns the current account with tokens unsealed.
func (s *Store) Auth() (*UserAuth, error) {
	var (
		ua            UserAuth
		sealedAccess  []byte
		sealedRefresh []byte
	)
	err := s.conn.QueryRow(`
		SELECT user_id, email, access_token, refresh_token, updated_at
		FROM user_auth WHERE id = 1 AND is_current = 1`).
		Scan(&ua.UserID, &ua.Email, &sealedAccess, &sealedRefresh, &ua.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoAuth
	}
	if err != nil {
		return nil, fmt.Errorf("read auth: %w", err)
	}
	access, err := s.seal.Unseal(sealedAccess)
	if err != nil {
		return nil, fmt.Errorf("unseal access token: %w", err)
	}
	refresh, err := s.seal.Unseal(sealedRefresh)
	if err != nil {
		return nil, fmt.Errorf("unseal refresh token: %w", err)
	}
	ua.AccessToken = string(access)
	ua.RefreshToken = string(refresh)
	return &ua, nil
}

// RotateTokens swaps in a fresh token pair after a refresh, leaving the
// account identity untouched.
func (s *Store) RotateTokens(accessToken, refreshToken string) error {
	sealedAccess, err := s.seal.Seal([]byte(accessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := s.seal.Seal([]byte(refreshToken))
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	res, err := s.conn.Exec(`
		UPDATE user_auth SET access_token = ?, refresh_token = ?, updated_at = ?
		WHERE id = 1 AND is_current = 1`,
		sealedAccess, sealedRefresh, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("rotate tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate tokens: %w", err)
	}
	if n == 0 {
		return ErrNoAuth
	}
	return nil
}

// ClearAuth signs the account out. Local data stays in place.
func (s *Store) ClearAuth() error {
	_, err := s.conn.Exec(`DELETE FROM user_auth WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("clear auth: %w", err)
	}
	return nil
}
