package domain

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers ISO-8859-x and Windows-125x decoders
	"github.com/emersion/go-message/mail"
)

// errFound stops the MIME walk once a text/plain part has been read.
var errFound = errors.New("text part found")

// ParseAlarmMessage parses a raw RFC 822 message and extracts the alarm from
// its plain-text body. Input that does not look like a mail message is
// scanned as a bare body. It returns false when no incident is present.
func ParseAlarmMessage(raw []byte) (Alarm, bool) {
	body, subject := messageBody(raw)
	alarm, ok := ParseIncident(body)
	if !ok {
		return Alarm{}, false
	}
	alarm.Subject = subject
	return alarm, true
}

// messageBody returns the decoded text of the first text/plain part (or of
// the only part of a single-part message) and the decoded subject.
func messageBody(raw []byte) (body, subject string) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return toValidUTF8(raw), ""
	}

	h := mail.Header{Header: entity.Header}
	if s, err := h.Subject(); err == nil {
		subject = strings.TrimSpace(s)
	} else {
		subject = strings.TrimSpace(entity.Header.Get("Subject"))
	}

	if !isMultipart(entity) {
		return readPart(entity), subject
	}

	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}
		if isMultipart(part) {
			return nil
		}
		if mediaType, _, _ := part.Header.ContentType(); mediaType != "text/plain" {
			return nil
		}
		body = readPart(part)
		return errFound
	})
	if walkErr != nil && !errors.Is(walkErr, errFound) {
		return "", subject
	}
	return body, subject
}

func isMultipart(e *message.Entity) bool {
	mediaType, _, _ := e.Header.ContentType()
	return strings.HasPrefix(mediaType, "multipart/")
}

func readPart(part *message.Entity) string {
	data, err := io.ReadAll(part.Body)
	if err != nil && len(data) == 0 {
		return ""
	}
	return toValidUTF8(data)
}

func toValidUTF8(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
