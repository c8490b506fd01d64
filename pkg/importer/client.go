// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package importer

import (
	"context"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ChatClient is the set of Matrix operations the importer drives. The
// production implementation lives in package matrix; tests inject a double
// that records calls.
type ChatClient interface {
	// Login performs a password login and returns the new session.
	Login(ctx context.Context, password, deviceName string) (*Session, error)
	// RestoreSession adopts a previously persisted session without
	// contacting the homeserver.
	RestoreSession(sess *Session)
	// Whoami returns the user and device the client is acting as.
	Whoami() (id.UserID, id.DeviceID)

	Sync(ctx context.Context, fullState bool) error
	JoinedRooms(ctx context.Context) ([]id.RoomID, error)
	JoinRoom(ctx context.Context, roomID id.RoomID) error
	RoomMembers(ctx context.Context, roomID id.RoomID) ([]id.UserID, error)

	// Devices lists the known devices of a user. It is only meaningful
	// after a sync.
	Devices(ctx context.Context, userID id.UserID) ([]id.DeviceID, error)
	TrustDevice(ctx context.Context, userID id.UserID, deviceID id.DeviceID) error

	Upload(ctx context.Context, data []byte, mimeType, fileName string) (id.ContentURIString, error)
	SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error)

	Close() error
}
