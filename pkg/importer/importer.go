// Copyright 2024-2026 Aiku AI

// Package importer replays a Rocket.Chat export into a Matrix room.
//
// [Importer] authenticates through a [SessionManager], syncs, joins the
// target room, trusts the devices of its members and hands the records to a
// [Transfer]. All Matrix access goes through the [ChatClient] interface.
//
// Failures come in two kinds: a [FatalError] stops the run, a [SkipError]
// drops a single attachment and is collected in the [Report].
package importer

import (
	"context"
	"slices"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// Options configures an import run.
type Options struct {
	Password    string
	DeviceName  string
	RoomID      id.RoomID
	SessionFile string
	AssetsDir   string
}

// Importer drives a complete import against one ChatClient.
type Importer struct {
	client ChatClient
	opts   Options
	log    zerolog.Logger
}

// New creates an importer. The importer owns the client and closes it when
// Run returns.
func New(client ChatClient, opts Options, log zerolog.Logger) *Importer {
	return &Importer{
		client: client,
		opts:   opts,
		log:    log.With().Str("component", "importer").Logger(),
	}
}

// Run logs in, prepares the room and transfers the records.
func (imp *Importer) Run(ctx context.Context, records []*rcexport.Record) (report *Report, err error) {
	defer func() {
		if closeErr := imp.client.Close(); closeErr != nil {
			imp.log.Warn().Err(closeErr).Msg("Failed to close client")
		}
	}()

	sm := &SessionManager{
		Client:      imp.client,
		SessionFile: imp.opts.SessionFile,
		Log:         imp.log.With().Str("component", "session").Logger(),
	}
	if err = sm.Login(ctx, imp.opts.Password, imp.opts.DeviceName); err != nil {
		return nil, err
	}

	if err = imp.client.Sync(ctx, true); err != nil {
		imp.log.Error().Err(err).Msg("Initial sync failed")
		return nil, fatal("sync", err)
	}

	if err = imp.ensureJoined(ctx); err != nil {
		return nil, err
	}

	if err = sm.TrustRoomDevices(ctx, imp.opts.RoomID); err != nil {
		return nil, err
	}

	transfer := &Transfer{
		Client:    imp.client,
		RoomID:    imp.opts.RoomID,
		AssetsDir: imp.opts.AssetsDir,
		Log:       imp.log.With().Str("component", "transfer").Logger(),
	}
	return transfer.Run(ctx, records)
}

// ensureJoined joins the target room unless the user is already in it, and
// resyncs after a join so the room state is known locally.
func (imp *Importer) ensureJoined(ctx context.Context) error {
	log := imp.log.With().Str("room_id", string(imp.opts.RoomID)).Logger()

	joined, err := imp.client.JoinedRooms(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not retrieve joined rooms")
		return fatal("list joined rooms", err)
	}
	if slices.Contains(joined, imp.opts.RoomID) {
		log.Debug().Msg("Already joined target room")
		return nil
	}

	log.Info().Msg("User has not joined room, trying to join now")
	if err := imp.client.JoinRoom(ctx, imp.opts.RoomID); err != nil {
		log.Error().Err(err).Msg("Failed to join room")
		return fatal("join room", err)
	}
	log.Info().Msg("Join successful")

	if err := imp.client.Sync(ctx, false); err != nil {
		log.Error().Err(err).Msg("Sync after join failed")
		return fatal("sync", err)
	}
	return nil
}
