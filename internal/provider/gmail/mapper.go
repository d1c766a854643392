package gmail

import (
	"encoding/base64"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/mailheader"
	"github.com/IftatBhuiyan/NimbusMail-sub000/internal/provider"
)

// mapThread converts a Gmail API Thread to a provider Thread.
func mapThread(t *gmailapi.Thread) provider.Thread {
	msgs := make([]provider.RawMessage, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m == nil {
			continue
		}
		msgs = append(msgs, mapMessage(m))
	}
	return provider.Thread{
		ID:       t.Id,
		Snippet:  t.Snippet,
		Messages: msgs,
	}
}

// mapMessage converts a Gmail API Message to a provider RawMessage.
// Header interpretation is left to the mailheader package.
func mapMessage(msg *gmailapi.Message) provider.RawMessage {
	var headers []mailheader.Header
	if msg.Payload != nil {
		headers = make([]mailheader.Header, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			if h == nil {
				continue
			}
			headers = append(headers, mailheader.Header{Name: h.Name, Value: h.Value})
		}
	}

	text, html := extractBody(msg.Payload)
	body := text
	if body == "" {
		body = html
	}

	return provider.RawMessage{
		ID:             msg.Id,
		ThreadID:       msg.ThreadId,
		LabelIDs:       msg.LabelIds,
		Snippet:        msg.Snippet,
		InternalDate:   msg.InternalDate,
		Headers:        headers,
		Body:           body,
		HasAttachments: hasAttachments(msg.Payload),
	}
}

// extractBody walks the MIME tree and returns the first text/plain and
// text/html leaves it finds.
func extractBody(payload *gmailapi.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			t, h := extractBody(part)
			if text == "" {
				text = t
			}
			if html == "" {
				html = h
			}
		}
		return text, html
	}

	data := ""
	if payload.Body != nil {
		data = decodeBase64URL(payload.Body.Data)
	}

	switch payload.MimeType {
	case "text/plain":
		return data, ""
	case "text/html":
		return "", data
	}
	return "", ""
}

// hasAttachments reports whether any part of the payload carries a filename.
func hasAttachments(part *gmailapi.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasAttachments(p) {
			return true
		}
	}
	return false
}

// decodeBase64URL decodes Gmail's URL-safe base64 strings. Gmail omits
// padding on bodies but not always on attachments, so both are accepted.
func decodeBase64URL(s string) string {
	if s == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return ""
		}
	}
	return string(data)
}
