// Copyright 2024-2026 Aiku AI

package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

// Session is a persisted Matrix login.
type Session struct {
	AccessToken string      `json:"access_token"`
	DeviceID    id.DeviceID `json:"device_id"`
	UserID      id.UserID   `json:"user_id"`
}

// Complete reports whether the session carries a full identity.
func (s *Session) Complete() bool {
	return s != nil && s.UserID != "" && s.AccessToken != "" && s.DeviceID != ""
}

// LoadSession reads a session file.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &sess, nil
}

// SaveSession overwrites the session file.
func SaveSession(path string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// SessionManager authenticates a ChatClient, reusing a persisted session
// when one is available. An empty SessionFile disables persistence.
type SessionManager struct {
	Client      ChatClient
	SessionFile string
	Log         zerolog.Logger
}

// Login restores the session from SessionFile or, failing that, logs in
// with a password and persists the new session. A rejected password login
// is returned as a *FatalError and leaves the session file untouched.
func (sm *SessionManager) Login(ctx context.Context, password, deviceName string) error {
	if sm.SessionFile == "" {
		return sm.passwordLogin(ctx, password, deviceName)
	}
	sess, err := LoadSession(sm.SessionFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		sm.Log.Debug().Str("path", sm.SessionFile).Msg("No stored session")
	case err != nil:
		sm.Log.Warn().Err(err).Str("path", sm.SessionFile).Msg("Couldn't load session from file")
	case !sess.Complete():
		sm.Log.Warn().Str("path", sm.SessionFile).Msg("Stored session is incomplete, ignoring it")
	default:
		sm.Client.RestoreSession(sess)
		sm.Log.Info().
			Str("user_id", string(sess.UserID)).
			Str("device_id", string(sess.DeviceID)).
			Msg("Logged in using credentials from previous session")
		return nil
	}
	return sm.passwordLogin(ctx, password, deviceName)
}

func (sm *SessionManager) passwordLogin(ctx context.Context, password, deviceName string) error {
	sess, err := sm.Client.Login(ctx, password, deviceName)
	if err != nil {
		sm.Log.Error().Err(err).Msg("Failed to log in")
		return fatal("login", err)
	}
	if !sess.Complete() {
		return fatal("login", fmt.Errorf("homeserver returned an incomplete session"))
	}
	sm.Log.Info().
		Str("user_id", string(sess.UserID)).
		Str("device_id", string(sess.DeviceID)).
		Msg("Logged in using a password")
	if sm.SessionFile == "" {
		return nil
	}
	if err := SaveSession(sm.SessionFile, sess); err != nil {
		// The session is still usable for this run.
		sm.Log.Error().Err(err).Str("path", sm.SessionFile).Msg("Failed to save session")
	}
	return nil
}

// TrustRoomDevices marks every device of every member of roomID as trusted,
// except the client's own device. The client must have synced first.
func (sm *SessionManager) TrustRoomDevices(ctx context.Context, roomID id.RoomID) error {
	members, err := sm.Client.RoomMembers(ctx, roomID)
	if err != nil {
		sm.Log.Error().Err(err).Str("room_id", string(roomID)).Msg("Failed to get room members")
		return fatal("list room members", err)
	}
	ownUser, ownDevice := sm.Client.Whoami()
	trusted := 0
	for _, userID := range members {
		devices, err := sm.Client.Devices(ctx, userID)
		if err != nil {
			sm.Log.Warn().Err(err).Str("user_id", string(userID)).Msg("Failed to list devices")
			continue
		}
		for _, deviceID := range devices {
			if userID == ownUser && deviceID == ownDevice {
				continue
			}
			if err := sm.Client.TrustDevice(ctx, userID, deviceID); err != nil {
				sm.Log.Warn().Err(err).
					Str("user_id", string(userID)).
					Str("device_id", string(deviceID)).
					Msg("Failed to trust device")
				continue
			}
			trusted++
			sm.Log.Debug().
				Str("user_id", string(userID)).
				Str("device_id", string(deviceID)).
				Msg("Trusted device")
		}
	}
	sm.Log.Info().Int("members", len(members)).Int("devices", trusted).Msg("Marked room devices as trusted")
	return nil
}
