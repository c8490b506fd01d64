// Copyright 2024-2026 Aiku AI

// Package rcfmt renders Rocket.Chat export records as Matrix message content.
package rcfmt

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"maunium.net/go/mautrix/event"

	"github.com/aiku/rc2matrix/pkg/rcexport"
)

// ParsedMessage holds a plain text body and its HTML counterpart.
type ParsedMessage struct {
	Body          string
	Format        event.Format
	FormattedBody string
}

// Content converts the message to an m.text event content.
func (p *ParsedMessage) Content() *event.MessageEventContent {
	return &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          p.Body,
		Format:        p.Format,
		FormattedBody: p.FormattedBody,
	}
}

var typeLabels = map[string]string{
	rcexport.TypeUserJoined:         "User joined",
	rcexport.TypeUserRemoved:        "User removed",
	rcexport.TypeUserAdded:          "User added",
	rcexport.TypeMessagePinned:      "Message pinned",
	rcexport.TypeRoleAdded:          "Subscription role added",
	rcexport.TypeRoomChangedPrivacy: "Room privacy changed",
	rcexport.TypeDiscussionCreated:  "Discussion created",
}

// TypeLabel returns the human readable label of a record type tag.
func TypeLabel(typ string) string {
	if label, ok := typeLabels[typ]; ok {
		return label
	}
	return "Other"
}

const headerSeparator = " // "

// Header renders the "{user} // {date}" line that precedes every imported
// message, extended with the action label and one fragment per attachment.
func Header(rec *rcexport.Record) *ParsedMessage {
	base := rec.Username + headerSeparator + rec.Timestamp.Formatted()

	var plainParts, htmlParts []string
	if rec.HasType() {
		label := TypeLabel(rec.Type)
		plainParts = append(plainParts, "action: "+label)
		htmlParts = append(htmlParts, "<em>action:</em> "+html.EscapeString(label))
	}
	for i := range rec.Attachments {
		plainParts = append(plainParts, attachmentPlain(&rec.Attachments[i]))
		htmlParts = append(htmlParts, attachmentHTML(&rec.Attachments[i]))
	}

	plainAdd := strings.Join(plainParts, ", ")
	if plainAdd == "" {
		return &ParsedMessage{
			Body:          base,
			Format:        event.FormatHTML,
			FormattedBody: "<sub>" + html.EscapeString(base) + "</sub>",
		}
	}
	return &ParsedMessage{
		Body:          base + headerSeparator + plainAdd,
		Format:        event.FormatHTML,
		FormattedBody: "<sub>" + html.EscapeString(base) + headerSeparator + strings.Join(htmlParts, ", ") + "</sub>",
	}
}

func attachmentPlain(a *rcexport.Attachment) string {
	switch {
	case a.FileName != "":
		return a.FileName
	case a.MessageLink != "":
		return a.MessageLink
	case a.Remote && a.Title != "":
		return "external: " + a.Title
	default:
		return ""
	}
}

func attachmentHTML(a *rcexport.Attachment) string {
	switch {
	case a.FileName != "":
		return html.EscapeString(a.FileName)
	case a.MessageLink != "":
		return `<a href="` + html.EscapeString(a.MessageLink) + `">link</a>`
	case a.Remote && a.Title != "":
		return `<a href="` + html.EscapeString(a.URL) + `">` + html.EscapeString(a.Title) + `</a>`
	default:
		return ""
	}
}

// Body combines a rendered header with the record's message text. System
// messages (records with a type tag) are emphasized before the blank check,
// so a typed record always carries a body. Blank text leaves the header
// alone.
func Body(header *ParsedMessage, rec *rcexport.Record) *ParsedMessage {
	text := rec.Message
	if rec.HasType() {
		text = "_" + text + "_"
	}
	if strings.TrimSpace(text) == "" {
		return &ParsedMessage{
			Body:          header.Body,
			Format:        event.FormatHTML,
			FormattedBody: header.FormattedBody,
		}
	}
	return &ParsedMessage{
		Body:          header.Body + "\n" + text,
		Format:        event.FormatHTML,
		FormattedBody: header.FormattedBody + "<br>" + Markdown(text),
	}
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify, extension.Table),
)

// Markdown converts markdown text to HTML. Raw HTML in the input is not
// passed through.
func Markdown(text string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}
	return strings.TrimRight(buf.String(), "\n")
}
