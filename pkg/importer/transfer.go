// Copyright 2024-2026 Aiku AI

package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/importer/rcfmt"
	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// Transfer sends export records to a Matrix room, one at a time and in
// export order.
type Transfer struct {
	Client    ChatClient
	RoomID    id.RoomID
	AssetsDir string
	Log       zerolog.Logger
}

// Report summarizes a transfer.
type Report struct {
	Records  int
	Messages int
	Skipped  []*SkipError
}

// Run delivers every record as a header/body message followed by one
// message per local attachment. A failed text message aborts the run with
// a *FatalError; failed attachments are logged, collected in the report and
// skipped.
func (t *Transfer) Run(ctx context.Context, records []*rcexport.Record) (*Report, error) {
	report := &Report{}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, fatal("transfer", err)
		}

		msg := rcfmt.Body(rcfmt.Header(rec), rec)
		evtID, err := t.Client.SendMessage(ctx, t.RoomID, msg.Content())
		if err != nil {
			t.Log.Error().Err(err).Int("record", i+1).Str("username", rec.Username).Msg("Failed to send message")
			return report, fatal("send message", fmt.Errorf("record #%d: %w", i+1, err))
		}
		report.Messages++
		t.Log.Trace().Int("record", i+1).Str("event_id", string(evtID)).Msg("Sent message")

		for j := range rec.Attachments {
			att := &rec.Attachments[j]
			if !att.IsLocal() {
				continue
			}
			_, err := t.sendAttachment(ctx, i+1, att)
			var skip *SkipError
			if errors.As(err, &skip) {
				t.Log.Warn().Err(skip.Err).Int("record", skip.Record).Str("file", skip.File).Msg("Skipping attachment")
				report.Skipped = append(report.Skipped, skip)
				continue
			} else if err != nil {
				return report, err
			}
			report.Messages++
		}
		report.Records++

		if report.Records%100 == 0 {
			t.Log.Info().Int("records", report.Records).Int("total", len(records)).Msg("Transfer progress")
		}
	}
	t.Log.Info().
		Int("records", report.Records).
		Int("messages", report.Messages).
		Int("skipped_attachments", len(report.Skipped)).
		Msg("Transfer complete")
	return report, nil
}
