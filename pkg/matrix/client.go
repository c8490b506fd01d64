// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package matrix implements importer.ChatClient on top of mautrix.
package matrix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/importer"
)

var storeNameReplacer = strings.NewReplacer("@", "", ":", "_", "/", "_", "\\", "_")

// CryptoStorePath returns the sqlite database holding the olm account of a
// device. Every device gets its own file, so a fresh login never reuses the
// account of an earlier device.
func CryptoStorePath(storeDir string, userID id.UserID, deviceID id.DeviceID) string {
	name := storeNameReplacer.Replace(string(userID)) + "_" + storeNameReplacer.Replace(string(deviceID)) + ".db"
	return filepath.Join(storeDir, name)
}

// Config holds the connection settings of a Client.
type Config struct {
	Homeserver string
	User       string
	// Encryption enables end-to-end encryption. Keys are kept in StoreDir.
	Encryption bool
	StoreDir   string
	PickleKey  string
}

// Client is an importer.ChatClient backed by a mautrix client. When
// encryption is enabled the olm machine is set up lazily on the first Sync,
// once the client has a device.
type Client struct {
	cli    *mautrix.Client
	cfg    Config
	crypto *cryptohelper.CryptoHelper
	log    zerolog.Logger
}

var _ importer.ChatClient = (*Client)(nil)

// New creates a client for the configured homeserver. It does not contact
// the server.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	cli, err := mautrix.NewClient(cfg.Homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	log = log.With().Str("component", "matrix").Logger()
	cli.Log = log
	if cli.StateStore == nil {
		cli.StateStore = mautrix.NewMemoryStateStore()
	}
	if syncer, ok := cli.Syncer.(mautrix.ExtensibleSyncer); ok {
		syncer.OnEvent(cli.StateStoreSyncHandler)
	}
	return &Client{cli: cli, cfg: cfg, log: log}, nil
}

func (c *Client) Login(ctx context.Context, password, deviceName string) (*importer.Session, error) {
	resp, err := c.cli.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: c.cfg.User,
		},
		Password:                 password,
		InitialDeviceDisplayName: deviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log in as %s: %w", c.cfg.User, err)
	}
	sess := &importer.Session{
		AccessToken: resp.AccessToken,
		DeviceID:    resp.DeviceID,
		UserID:      resp.UserID,
	}
	c.RestoreSession(sess)
	return sess, nil
}

func (c *Client) RestoreSession(sess *importer.Session) {
	c.cli.UserID = sess.UserID
	c.cli.DeviceID = sess.DeviceID
	c.cli.AccessToken = sess.AccessToken
}

func (c *Client) Whoami() (id.UserID, id.DeviceID) {
	return c.cli.UserID, c.cli.DeviceID
}

// Sync performs a single sync request and feeds the response through the
// syncer, which updates the state store and the olm machine.
func (c *Client) Sync(ctx context.Context, fullState bool) error {
	if err := c.initCrypto(ctx); err != nil {
		return err
	}
	since, err := c.cli.Store.LoadNextBatch(ctx, c.cli.UserID)
	if err != nil {
		return fmt.Errorf("failed to load sync token: %w", err)
	}
	resp, err := c.cli.SyncRequest(ctx, 0, since, "", fullState, event.PresenceOffline)
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := c.cli.Syncer.ProcessResponse(ctx, resp, since); err != nil {
		return fmt.Errorf("failed to process sync response: %w", err)
	}
	if err := c.cli.Store.SaveNextBatch(ctx, c.cli.UserID, resp.NextBatch); err != nil {
		return fmt.Errorf("failed to save sync token: %w", err)
	}
	c.log.Debug().Str("next_batch", resp.NextBatch).Bool("full_state", fullState).Msg("Synced")
	return nil
}

func (c *Client) initCrypto(ctx context.Context) error {
	if !c.cfg.Encryption || c.crypto != nil {
		return nil
	}
	if err := os.MkdirAll(c.cfg.StoreDir, 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	dbPath := CryptoStorePath(c.cfg.StoreDir, c.cli.UserID, c.cli.DeviceID)
	db, err := dbutil.NewWithDialect("file:"+dbPath+"?_txlock=immediate", "sqlite3")
	if err != nil {
		return fmt.Errorf("failed to open crypto store: %w", err)
	}
	helper, err := cryptohelper.NewCryptoHelper(c.cli, []byte(c.cfg.PickleKey), db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	c.cli.Crypto = helper
	c.crypto = helper
	c.log.Info().Str("store", dbPath).Msg("Encryption enabled")
	return nil
}

func (c *Client) JoinedRooms(ctx context.Context) ([]id.RoomID, error) {
	resp, err := c.cli.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined rooms: %w", err)
	}
	return resp.JoinedRooms, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID id.RoomID) error {
	if _, err := c.cli.JoinRoomByID(ctx, roomID); err != nil {
		return fmt.Errorf("failed to join %s: %w", roomID, err)
	}
	return nil
}

// RoomMembers returns the joined and invited members of roomID. Invited
// users get the room keys too, so their devices are trusted as well.
func (c *Client) RoomMembers(ctx context.Context, roomID id.RoomID) ([]id.UserID, error) {
	resp, err := c.cli.Members(ctx, roomID, mautrix.ReqMembers{NotMembership: event.MembershipLeave})
	if err != nil {
		return nil, fmt.Errorf("failed to get members of %s: %w", roomID, err)
	}
	members := make([]id.UserID, 0, len(resp.Chunk))
	for _, evt := range resp.Chunk {
		if evt.StateKey == nil {
			continue
		}
		switch evt.Content.AsMember().Membership {
		case event.MembershipJoin, event.MembershipInvite:
			members = append(members, id.UserID(*evt.StateKey))
		}
	}
	return members, nil
}

// Devices fetches the device list of userID from the homeserver. Without
// encryption there are no device keys and the list is empty.
func (c *Client) Devices(ctx context.Context, userID id.UserID) ([]id.DeviceID, error) {
	if c.crypto == nil {
		return nil, nil
	}
	mach := c.crypto.Machine()
	if _, err := mach.FetchKeys(ctx, []id.UserID{userID}, true); err != nil {
		return nil, fmt.Errorf("failed to fetch device keys: %w", err)
	}
	devices, err := mach.CryptoStore.GetDevices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	ids := make([]id.DeviceID, 0, len(devices))
	for deviceID := range devices {
		ids = append(ids, deviceID)
	}
	return ids, nil
}

// TrustDevice marks a known device as verified so room keys are shared
// with it.
func (c *Client) TrustDevice(ctx context.Context, userID id.UserID, deviceID id.DeviceID) error {
	if c.crypto == nil {
		return nil
	}
	store := c.crypto.Machine().CryptoStore
	devices, err := store.GetDevices(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}
	device, ok := devices[deviceID]
	if !ok {
		return fmt.Errorf("unknown device %s of %s", deviceID, userID)
	}
	device.Trust = id.TrustStateVerified
	if err := store.PutDevice(ctx, userID, device); err != nil {
		return fmt.Errorf("failed to store device trust: %w", err)
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, data []byte, mimeType, fileName string) (id.ContentURIString, error) {
	resp, err := c.cli.UploadBytesWithName(ctx, data, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	return resp.ContentURI.CUString(), nil
}

// SendMessage sends an m.room.message event. Messages to encrypted rooms
// are encrypted by the mautrix client when encryption is enabled.
func (c *Client) SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error) {
	resp, err := c.cli.SendMessageEvent(ctx, roomID, event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return resp.EventID, nil
}

// Close releases the crypto store.
func (c *Client) Close() error {
	if c.crypto == nil {
		return nil
	}
	err := c.crypto.Close()
	c.crypto = nil
	c.cli.Crypto = nil
	if err != nil {
		return fmt.Errorf("failed to close crypto store: %w", err)
	}
	return nil
}
