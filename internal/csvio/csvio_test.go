package csvio

import (
	"strings"
	"testing"
)

var samHeaders = []string{"SERIAL_DEC", "SERIAL_HEX", "CONFIG"}

func TestParseFile(t *testing.T) {
	data := []byte("SERIAL_DEC,SERIAL_HEX,CONFIG\n255,FF,CP\n256,100,CL\n")

	rows, err := ParseFile(data, samHeaders)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["SERIAL_HEX"] != "FF" {
		t.Errorf("SERIAL_HEX = %q, want FF", rows[0]["SERIAL_HEX"])
	}
	if rows[1]["CONFIG"] != "CL" {
		t.Errorf("CONFIG = %q, want CL", rows[1]["CONFIG"])
	}
}

func TestParseFile_BOMAndCaseInsensitiveHeader(t *testing.T) {
	data := []byte("\xEF\xBB\xBFserial_dec,serial_hex,config\n255,FF,CP\n")

	rows, err := ParseFile(data, samHeaders)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	// Rows are keyed by the canonical header names regardless of the
	// casing the file used.
	if rows[0]["SERIAL_DEC"] != "255" {
		t.Errorf("SERIAL_DEC = %q, want 255", rows[0]["SERIAL_DEC"])
	}
}

func TestParseFile_SkipsBlankRows(t *testing.T) {
	data := []byte("SERIAL_DEC,SERIAL_HEX,CONFIG\n255,FF,CP\n,,\n\n256,100,CL\n")

	rows, err := ParseFile(data, samHeaders)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2 (blank rows skipped)", len(rows))
	}
}

func TestParseFile_MissingColumn(t *testing.T) {
	data := []byte("SERIAL_DEC,CONFIG\n255,CP\n")

	_, err := ParseFile(data, samHeaders)
	if err == nil {
		t.Fatal("expected error for missing column")
	}
	if !strings.Contains(err.Error(), "SERIAL_HEX") {
		t.Errorf("error = %q, want it to name the missing column", err)
	}
}

func TestParseFile_UnexpectedColumn(t *testing.T) {
	data := []byte("SERIAL_DEC,SERIAL_HEX,CONFIG,EXTRA\n255,FF,CP,x\n")

	_, err := ParseFile(data, samHeaders)
	if err == nil {
		t.Fatal("expected error for unexpected column")
	}
	if !strings.Contains(err.Error(), "extra") {
		t.Errorf("error = %q, want it to name the unexpected column", err)
	}
}

func TestParseFile_Empty(t *testing.T) {
	if _, err := ParseFile(nil, samHeaders); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestParseFile_InvalidUTF8(t *testing.T) {
	// Latin-1 encoded "ESTACIÓN" in a cell must not abort parsing.
	data := []byte("SERIAL_DEC,SERIAL_HEX,CONFIG\n255,FF,CP\xd3\n")

	rows, err := ParseFile(data, samHeaders)
	if err != nil {
		t.Fatalf("ParseFile failed on invalid UTF-8: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestParseFile_ShortRow(t *testing.T) {
	data := []byte("SERIAL_DEC,SERIAL_HEX,CONFIG\n255,FF\n")

	rows, err := ParseFile(data, samHeaders)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if rows[0]["CONFIG"] != "" {
		t.Errorf("CONFIG on short row = %q, want empty", rows[0]["CONFIG"])
	}
}
