// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues and reads signed session cookies.
package session

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/kaminskia1/excel-autograder/internal/config"
)

const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64     `json:"uid"`
	Username  string    `json:"usr"`
	Version   int64     `json:"ver"`
	ExpiresAt time.Time `json:"exp"`
}

// Manager creates and validates session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager creates a session manager. An empty hash key generates a random
// one, which invalidates all sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("session_hash_key_missing", "hint", "sessions will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(keyLength)
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}

// Create returns a cookie holding a new session for the user. version is
// the user's current session version; bumping it revokes the session.
func (m *Manager) Create(userID int64, username string, version int64) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Username:  username,
		Version:   version,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}

	encoded, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return m.cookie(encoded, m.maxAge), nil
}

// Parse reads the session from r. A missing, tampered or expired cookie
// yields nil without an error.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}
	return m.Decode(cookie.Value)
}

// Decode reads a session from an encoded cookie value, as sent in an
// "Authorization: Token <value>" header by API clients.
func (m *Manager) Decode(value string) (*Data, error) {
	var data Data
	if err := m.codec.Decode(m.name, value, &data); err != nil {
		return nil, nil //nolint:nilerr // invalid cookies are treated as logged out
	}

	if time.Now().After(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.name
}

// Clear returns a cookie that deletes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
