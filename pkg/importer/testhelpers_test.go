// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package importer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// clientCall records one ChatClient invocation.
type clientCall struct {
	Op   string
	Args []string
}

type upload struct {
	Data     []byte
	MimeType string
	FileName string
}

// fakeClient is a ChatClient that records calls and returns canned results.
type fakeClient struct {
	mu    sync.Mutex
	calls []clientCall

	userID   id.UserID
	deviceID id.DeviceID
	token    string

	LoginSession *Session
	LoginErr     error
	SyncErr      error
	Joined       []id.RoomID
	JoinedErr    error
	JoinErr      error
	Members      []id.UserID
	MembersErr   error
	DeviceMap    map[id.UserID][]id.DeviceID
	TrustErr     map[id.DeviceID]error
	UploadErr    map[string]error
	// SendErr is consulted for every SendMessage call with the message body.
	SendErr func(body string) error

	Trusted  []string
	Uploads  []upload
	Messages []*event.MessageEventContent
	Closed   int
}

var _ ChatClient = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		LoginSession: &Session{AccessToken: "new-token", DeviceID: "NEWDEVICE", UserID: "@importer:example.com"},
		DeviceMap:    make(map[id.UserID][]id.DeviceID),
		TrustErr:     make(map[id.DeviceID]error),
		UploadErr:    make(map[string]error),
	}
}

func (f *fakeClient) record(op string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, clientCall{Op: op, Args: args})
}

func (f *fakeClient) Calls() []clientCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]clientCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeClient) Ops() []string {
	var ops []string
	for _, c := range f.Calls() {
		ops = append(ops, c.Op)
	}
	return ops
}

func (f *fakeClient) Called(op string) bool {
	for _, c := range f.Calls() {
		if c.Op == op {
			return true
		}
	}
	return false
}

func (f *fakeClient) Login(_ context.Context, password, deviceName string) (*Session, error) {
	f.record("Login", password, deviceName)
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	f.RestoreSession(f.LoginSession)
	return f.LoginSession, nil
}

func (f *fakeClient) RestoreSession(sess *Session) {
	f.record("RestoreSession", string(sess.UserID), string(sess.DeviceID), sess.AccessToken)
	f.userID, f.deviceID, f.token = sess.UserID, sess.DeviceID, sess.AccessToken
}

func (f *fakeClient) Whoami() (id.UserID, id.DeviceID) {
	return f.userID, f.deviceID
}

func (f *fakeClient) Sync(_ context.Context, fullState bool) error {
	f.record("Sync", fmt.Sprint(fullState))
	return f.SyncErr
}

func (f *fakeClient) JoinedRooms(_ context.Context) ([]id.RoomID, error) {
	f.record("JoinedRooms")
	return f.Joined, f.JoinedErr
}

func (f *fakeClient) JoinRoom(_ context.Context, roomID id.RoomID) error {
	f.record("JoinRoom", string(roomID))
	if f.JoinErr == nil {
		f.Joined = append(f.Joined, roomID)
	}
	return f.JoinErr
}

func (f *fakeClient) RoomMembers(_ context.Context, roomID id.RoomID) ([]id.UserID, error) {
	f.record("RoomMembers", string(roomID))
	return f.Members, f.MembersErr
}

func (f *fakeClient) Devices(_ context.Context, userID id.UserID) ([]id.DeviceID, error) {
	f.record("Devices", string(userID))
	return f.DeviceMap[userID], nil
}

func (f *fakeClient) TrustDevice(_ context.Context, userID id.UserID, deviceID id.DeviceID) error {
	f.record("TrustDevice", string(userID), string(deviceID))
	if err := f.TrustErr[deviceID]; err != nil {
		return err
	}
	f.Trusted = append(f.Trusted, string(userID)+"/"+string(deviceID))
	return nil
}

func (f *fakeClient) Upload(_ context.Context, data []byte, mimeType, fileName string) (id.ContentURIString, error) {
	f.record("Upload", mimeType, fileName)
	if err := f.UploadErr[fileName]; err != nil {
		return "", err
	}
	f.Uploads = append(f.Uploads, upload{Data: data, MimeType: mimeType, FileName: fileName})
	return id.ContentURIString(fmt.Sprintf("mxc://example.com/upload%d", len(f.Uploads))), nil
}

func (f *fakeClient) SendMessage(_ context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error) {
	f.record("SendMessage", string(roomID), string(content.MsgType), content.Body)
	if f.SendErr != nil {
		if err := f.SendErr(content.Body); err != nil {
			return "", err
		}
	}
	f.Messages = append(f.Messages, content)
	return id.EventID(fmt.Sprintf("$event%d", len(f.Messages))), nil
}

func (f *fakeClient) Close() error {
	f.record("Close")
	f.Closed++
	return nil
}

const testRoom id.RoomID = "!import:example.com"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func parseRecords(t *testing.T, input string) []*rcexport.Record {
	t.Helper()
	records, err := rcexport.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("rcexport.Parse: %v", err)
	}
	return records
}

func writeAsset(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}
