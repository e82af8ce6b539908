package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		wantError error
	}{
		{"valid simple filename", "eng_web.json", nil},
		{"valid filename with spaces", "my file.usx", nil},
		{"empty filename", "", ErrInvalidFilename},
		{"dot filename", ".", ErrInvalidFilename},
		{"dotdot filename", "..", ErrInvalidFilename},
		{"filename with slash", "dir/file.usx", ErrInvalidFilename},
		{"filename with backslash", "dir\\file.usx", ErrInvalidFilename},
		{"filename with null byte", "file\x00.usx", ErrInvalidFilename},
		{"filename with control character", "file\n.usx", ErrInvalidFilename},
		{"filename starting with hyphen", "-file.usx", ErrInvalidFilename},
		{"too long filename", strings.Repeat("a", 256), ErrFilenameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if tt.wantError == nil {
				if err != nil {
					t.Errorf("ValidateFilename() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Errorf("ValidateFilename() error = %v, want %v", err, tt.wantError)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError error
	}{
		{"valid relative path", "GEN.usx", nil},
		{"valid absolute path", "/tmp/GEN.usx", nil},
		{"empty path", "", ErrEmptyPath},
		{"path with null byte", "file\x00.usx", ErrInvalidCharacter},
		{"path with control character", "dir/file\n.usx", ErrInvalidCharacter},
		{"very long path", strings.Repeat("a/", 2048) + "file.usx", ErrPathTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantError == nil {
				if err != nil {
					t.Errorf("ValidatePath() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Errorf("ValidatePath() error = %v, want %v", err, tt.wantError)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		want      string
		wantError bool
	}{
		{"docset id", "eng_web", "eng_web", false},
		{"separators", "eng/web\\1901", "eng_web_1901", false},
		{"control characters", "eng\x01web", "engweb", false},
		{"leading hyphens and spaces", "  --eng_web ", "eng_web", false},
		{"only hyphens", "---", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.filename)
			if (err != nil) != tt.wantError {
				t.Fatalf("SanitizeFilename() error = %v, wantError %v", err, tt.wantError)
			}
			if got != tt.want {
				t.Errorf("SanitizeFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

type errorReader struct{}

func (errorReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read error")
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want FileType
	}{
		{"usx", []byte(`<?xml version="1.0"?><usx version="3.0"/>`), FileTypeXML},
		{"usx with BOM and space", []byte("\xef\xbb\xbf\n  <usx/>"), FileTypeXML},
		{"json", []byte(`{"id":"eng_web"}`), FileTypeJSON},
		{"sqlite", append([]byte("SQLite format 3\x00"), make([]byte, 84)...), FileTypeSQLite},
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, FileTypeXZ},
		{"gzip", []byte{0x1f, 0x8b, 0x08}, FileTypeGzip},
		{"plain text", []byte(`\id GEN`), FileTypeUnknown},
		{"binary", []byte{0x00, 0x01, 0x02}, FileTypeUnknown},
		{"empty", nil, FileTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DetectFileType() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := DetectFileType(errorReader{}); err == nil {
		t.Error("DetectFileType(errorReader) succeeded")
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	usx := filepath.Join(dir, "GEN.usx")
	if err := os.WriteFile(usx, []byte(`<usx version="3.0"/>`), 0644); err != nil {
		t.Fatal(err)
	}

	if data, err := ReadInput(usx, FileTypeXML); err != nil || len(data) == 0 {
		t.Errorf("ReadInput(usx, xml) = %d bytes, %v", len(data), err)
	}
	if _, err := ReadInput(usx, FileTypeJSON); !errors.Is(err, ErrFileType) {
		t.Errorf("ReadInput(usx, json) error = %v, want ErrFileType", err)
	}
	if _, err := ReadInput(filepath.Join(dir, "missing.usx"), FileTypeXML); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadInput(missing) error = %v, want ErrNotExist", err)
	}
	if _, err := ReadInput("", FileTypeXML); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("ReadInput(\"\") error = %v, want ErrEmptyPath", err)
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()

	got, err := OutputPath(dir, "eng_web", ".json")
	if err != nil || got != filepath.Join(dir, "eng_web.json") {
		t.Errorf("OutputPath(dir) = %q, %v", got, err)
	}

	file := filepath.Join(dir, "out.json")
	if got, err := OutputPath(file, "eng_web", ".json"); err != nil || got != file {
		t.Errorf("OutputPath(file) = %q, %v", got, err)
	}

	if _, err := OutputPath("", "eng_web", ".json"); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("OutputPath(\"\") error = %v, want ErrEmptyPath", err)
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"ascii", []byte("In the beginning"), true},
		{"utf-8", []byte("Au commencement, Dieu créa"), true},
		{"null byte", []byte("a\x00b"), false},
		{"mostly control", []byte{0x01, 0x02, 0x03, 'a'}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		if got := isLikelyText(tt.buf); got != tt.want {
			t.Errorf("isLikelyText(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
