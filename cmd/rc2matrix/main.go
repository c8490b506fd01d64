// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command rc2matrix imports a Rocket.Chat room export into a Matrix room.
// Every exported message is replayed in order as a message from the
// configured account, prefixed with the original author and date. Local
// file attachments are uploaded to the homeserver and sent after their
// message.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"
	flag "maunium.net/go/mauflag"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/config"
	"github.com/aiku/rc2matrix/pkg/importer"
	"github.com/aiku/rc2matrix/pkg/matrix"
	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const name = "rc2matrix"

var (
	configPath  = flag.MakeFull("c", "config", "The path to the config file.", "config.json").String()
	envPath     = flag.MakeFull("e", "env-file", "The path to a dotenv file with RC2MATRIX_* overrides.", ".env").String()
	dryRun      = flag.MakeFull("n", "dry-run", "Log the messages that would be sent instead of contacting the homeserver.", "false").Bool()
	version     = flag.MakeFull("v", "version", "View version and exit.", "false").Bool()
	wantHelp, _ = flag.MakeHelpFlag()
)

func main() {
	flag.SetHelpTitles(
		name+" - Import a Rocket.Chat room export into Matrix.",
		name+" [-hvn] [-c <path>] [-e <path>]",
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("%s %s (commit %s, built %s)\n", name, Tag, Commit, BuildTime)
		os.Exit(0)
	}
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(*envPath); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log, err := cfg.Logger()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	exzerolog.SetupDefaults(log)
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("room_id", string(cfg.RoomID)).
		Bool("dry_run", *dryRun).
		Msg("Starting import")

	records, err := rcexport.ParseFile(cfg.InputPath())
	if err != nil {
		log.Error().Err(err).Str("path", cfg.InputPath()).Msg("Failed to load export")
		return 1
	}
	log.Info().Int("records", len(records)).Str("path", cfg.InputPath()).Msg("Loaded export")

	client, sessionFile, err := newClient(cfg, *log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create client")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	imp := importer.New(client, importer.Options{
		Password:    cfg.Password,
		DeviceName:  cfg.DeviceName,
		RoomID:      cfg.RoomID,
		SessionFile: sessionFile,
		AssetsDir:   cfg.AssetsDir,
	}, *log)
	report, err := imp.Run(ctx, records)
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		return 1
	}
	for _, skip := range report.Skipped {
		log.Warn().Int("record", skip.Record).Str("file", skip.File).Err(skip.Err).Msg("Attachment was not imported")
	}
	log.Info().
		Int("records", report.Records).
		Int("messages", report.Messages).
		Int("skipped_attachments", len(report.Skipped)).
		Msg("Import finished")
	return 0
}

// newClient returns the client for this run and the session file it may
// use. Dry runs never persist a session.
func newClient(cfg *config.Config, log zerolog.Logger) (importer.ChatClient, string, error) {
	if *dryRun {
		return importer.NewDryRunClient(id.UserID(cfg.User), cfg.RoomID, log), "", nil
	}
	client, err := matrix.New(matrix.Config{
		Homeserver: cfg.Homeserver,
		User:       cfg.User,
		Encryption: cfg.Encryption,
		StoreDir:   cfg.StoreDir,
		PickleKey:  cfg.PickleKey,
	}, log)
	if err != nil {
		return nil, "", err
	}
	return client, cfg.SessionFile, nil
}
