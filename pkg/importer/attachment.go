// Copyright 2024-2026 Aiku AI

package importer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/rc2matrix/pkg/importer/media"
	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// undefinedFileName stands in for attachments exported without a name.
const undefinedFileName = "undefined"

// CleanFileName returns the attachment's file name with colons replaced. A
// missing and an empty "fileName" are both treated as unnamed.
func CleanFileName(a *rcexport.Attachment) string {
	if a.FileName == "" {
		return undefinedFileName
	}
	return strings.ReplaceAll(a.FileName, ":", "-")
}

// AssetName returns the name the export stores the attachment under.
func AssetName(a *rcexport.Attachment) string {
	return a.FileID + "-" + CleanFileName(a)
}

// uploadedContent describes an uploaded attachment.
type uploadedContent struct {
	URI      id.ContentURIString
	MimeType string
	Size     int
	Kind     media.Kind
	Width    int
	Height   int
}

// uploadAttachment reads a local attachment, inspects it and uploads it.
func (t *Transfer) uploadAttachment(ctx context.Context, a *rcexport.Attachment) (*uploadedContent, error) {
	assetName := AssetName(a)
	data, err := os.ReadFile(filepath.Join(t.AssetsDir, assetName))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	uc := &uploadedContent{
		MimeType: media.Detect(data),
		Size:     len(data),
	}
	uc.Kind = media.Classify(uc.MimeType)
	switch uc.Kind {
	case media.KindVectorImage:
		uc.Width, uc.Height = media.VectorSize, media.VectorSize
	case media.KindRasterImage:
		uc.Width, uc.Height, err = media.Dimensions(bytes.NewReader(data))
		if err != nil {
			t.Log.Warn().Err(err).
				Str("file", assetName).
				Str("mime_type", uc.MimeType).
				Msg("Couldn't measure image, sending it as a file")
			uc.Kind = media.KindFile
		}
	}

	uc.URI, err = t.Client.Upload(ctx, data, uc.MimeType, assetName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	return uc, nil
}

// attachmentContent builds the m.image or m.file content for an upload.
func attachmentContent(a *rcexport.Attachment, uc *uploadedContent) *event.MessageEventContent {
	content := &event.MessageEventContent{
		Body: CleanFileName(a),
		URL:  uc.URI,
		Info: &event.FileInfo{
			MimeType: uc.MimeType,
			Size:     uc.Size,
		},
	}
	if uc.Kind == media.KindFile {
		content.MsgType = event.MsgFile
		content.FileName = AssetName(a)
		return content
	}
	content.MsgType = event.MsgImage
	content.Info.Width = uc.Width
	content.Info.Height = uc.Height
	return content
}

// sendAttachment delivers one local attachment. Every failure is returned
// as a *SkipError.
func (t *Transfer) sendAttachment(ctx context.Context, recordIdx int, a *rcexport.Attachment) (id.EventID, error) {
	uc, err := t.uploadAttachment(ctx, a)
	if err != nil {
		return "", &SkipError{Record: recordIdx, File: AssetName(a), Err: err}
	}
	evtID, err := t.Client.SendMessage(ctx, t.RoomID, attachmentContent(a, uc))
	if err != nil {
		return "", &SkipError{Record: recordIdx, File: AssetName(a), Err: fmt.Errorf("failed to send attachment: %w", err)}
	}
	t.Log.Debug().
		Str("file", AssetName(a)).
		Str("kind", uc.Kind.String()).
		Str("mime_type", uc.MimeType).
		Str("event_id", string(evtID)).
		Msg("Sent attachment")
	return evtID, nil
}
