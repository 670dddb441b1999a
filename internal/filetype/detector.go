// Package filetype validates incoming source bytes by magic-byte sniffing,
// never by filename.
package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Info contains detected file type information.
type Info struct {
	MIMEType  string
	Extension string
	IsPDF     bool
}

// UnsupportedTypeError reports a source that is not a PDF.
type UnsupportedTypeError struct {
	MIMEType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported source type %q, expected application/pdf", e.MIMEType)
}

// Detector handles file type detection using magic bytes.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect sniffs the MIME type of data.
func (d *Detector) Detect(data []byte) *Info {
	mtype := mimetype.Detect(data)
	info := &Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsPDF:     mtype.Is("application/pdf"),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected file type")
	return info
}

// ValidatePDF rejects anything that does not carry a PDF signature. A PDF
// renamed to .txt passes; a zip renamed to .pdf does not.
func (d *Detector) ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return &UnsupportedTypeError{MIMEType: "empty"}
	}
	info := d.Detect(data)
	if !info.IsPDF {
		return &UnsupportedTypeError{MIMEType: info.MIMEType}
	}
	return nil
}
