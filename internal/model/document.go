package model

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Document is an uploaded file submitted for extraction.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// NewDocument wraps data. When mimeType is empty or generic, the type is
// sniffed from the content.
func NewDocument(name, mimeType string, data []byte) Document {
	mt := strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" || mt == "application/octet-stream" {
		mt = mimetype.Detect(data).String()
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
	}
	return Document{Name: name, MIMEType: mt, Data: data}
}

// Size returns the document size in bytes.
func (d Document) Size() int { return len(d.Data) }

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool { return d.MIMEType == "application/pdf" }

// IsImage reports whether the document is an image.
func (d Document) IsImage() bool { return strings.HasPrefix(d.MIMEType, "image/") }

// Base64 returns the standard base64 encoding of the content.
func (d Document) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Data)
}

// Validate checks the document against a size cap (bytes, 0 = unlimited)
// and a list of supported types. Supported entries are extensions ("pdf",
// "jpg") or full MIME types ("image/png").
func (d Document) Validate(maxBytes int64, supported []string) error {
	if len(d.Data) == 0 {
		return Errorf(KindInvalidInput, "The file is empty.")
	}
	if maxBytes > 0 && int64(len(d.Data)) > maxBytes {
		return Errorf(KindInvalidInput, "The file is too large. Maximum size is %d MB.", maxBytes/(1024*1024))
	}
	if len(supported) == 0 || d.typeSupported(supported) {
		return nil
	}
	return Errorf(KindInvalidInput, "Unsupported file type %q. Supported types: %s.", d.MIMEType, strings.Join(supported, ", "))
}

func (d Document) typeSupported(supported []string) bool {
	sub := d.MIMEType
	if i := strings.IndexByte(sub, '/'); i >= 0 {
		sub = sub[i+1:]
	}
	for _, s := range supported {
		s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
		if s == "jpg" {
			s = "jpeg"
		}
		if s == d.MIMEType || s == sub {
			return true
		}
	}
	return false
}
