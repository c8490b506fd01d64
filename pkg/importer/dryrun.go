// Copyright 2024-2026 Aiku AI

package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// DryRunClient is a ChatClient that logs every message instead of sending
// it. It never contacts a homeserver.
type DryRunClient struct {
	UserID   id.UserID
	DeviceID id.DeviceID
	RoomID   id.RoomID

	log     zerolog.Logger
	uploads int
	sent    int
}

var _ ChatClient = (*DryRunClient)(nil)

// NewDryRunClient creates a dry-run client that pretends to be userID and to
// already be in roomID.
func NewDryRunClient(userID id.UserID, roomID id.RoomID, log zerolog.Logger) *DryRunClient {
	return &DryRunClient{
		UserID:   userID,
		DeviceID: "DRYRUN",
		RoomID:   roomID,
		log:      log.With().Str("component", "dry_run").Logger(),
	}
}

func (d *DryRunClient) Login(_ context.Context, _, _ string) (*Session, error) {
	return &Session{AccessToken: "dry-run", DeviceID: d.DeviceID, UserID: d.UserID}, nil
}

func (d *DryRunClient) RestoreSession(sess *Session) {
	d.UserID = sess.UserID
	d.DeviceID = sess.DeviceID
}

func (d *DryRunClient) Whoami() (id.UserID, id.DeviceID) {
	return d.UserID, d.DeviceID
}

func (d *DryRunClient) Sync(_ context.Context, _ bool) error {
	return nil
}

func (d *DryRunClient) JoinedRooms(_ context.Context) ([]id.RoomID, error) {
	return []id.RoomID{d.RoomID}, nil
}

func (d *DryRunClient) JoinRoom(_ context.Context, _ id.RoomID) error {
	return nil
}

func (d *DryRunClient) RoomMembers(_ context.Context, _ id.RoomID) ([]id.UserID, error) {
	return []id.UserID{d.UserID}, nil
}

func (d *DryRunClient) Devices(_ context.Context, _ id.UserID) ([]id.DeviceID, error) {
	return []id.DeviceID{d.DeviceID}, nil
}

func (d *DryRunClient) TrustDevice(_ context.Context, _ id.UserID, _ id.DeviceID) error {
	return nil
}

func (d *DryRunClient) Upload(_ context.Context, data []byte, mimeType, fileName string) (id.ContentURIString, error) {
	d.uploads++
	d.log.Info().
		Str("file_name", fileName).
		Str("mime_type", mimeType).
		Int("size", len(data)).
		Msg("Would upload file")
	return id.ContentURIString(fmt.Sprintf("mxc://dry.run/%d", d.uploads)), nil
}

func (d *DryRunClient) SendMessage(_ context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error) {
	d.sent++
	evt := d.log.Info().
		Str("room_id", string(roomID)).
		Str("msgtype", string(content.MsgType)).
		Str("body", content.Body)
	if content.Info != nil && content.Info.Width > 0 {
		evt = evt.Int("w", content.Info.Width).Int("h", content.Info.Height)
	}
	evt.Msg("Would send message")
	return id.EventID(fmt.Sprintf("$dry-run-%d", d.sent)), nil
}

func (d *DryRunClient) Close() error {
	d.log.Info().Int("messages", d.sent).Int("uploads", d.uploads).Msg("Dry run finished")
	return nil
}
