package filetype

import (
	"errors"
	"testing"
)

func TestValidatePDF(t *testing.T) {
	d := New()

	pdf := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")
	if err := d.ValidatePDF(pdf); err != nil {
		t.Fatalf("valid pdf rejected: %v", err)
	}

	var ute *UnsupportedTypeError
	if err := d.ValidatePDF([]byte("PK\x03\x04 not a pdf")); !errors.As(err, &ute) {
		t.Fatalf("zip accepted: %v", err)
	}
	if err := d.ValidatePDF(nil); !errors.As(err, &ute) {
		t.Fatalf("empty accepted: %v", err)
	}
}

func TestDetectReportsMIME(t *testing.T) {
	d := New()
	info := d.Detect([]byte("%PDF-1.4\n"))
	if !info.IsPDF || info.Extension != ".pdf" {
		t.Fatalf("info = %+v", info)
	}
}
