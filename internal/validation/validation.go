// Package validation checks user-supplied paths and input files before the
// command line hands them to the importer or the loader.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on user input (CWE-400).
const (
	// MaxFileSize is the largest USX or serialized docset accepted (256 MB).
	MaxFileSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileType         = errors.New("unexpected file type")
)

// ValidateFilename checks that a filename has no separators, control
// characters or leading hyphen.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidatePath checks a path for emptiness, length and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// SanitizeFilename turns a docset id or other label into a safe filename.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	var cleaned strings.Builder
	for _, r := range filename {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

// FileType is the kind of content an input file holds.
type FileType string

const (
	FileTypeXML     FileType = "xml"
	FileTypeJSON    FileType = "json"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeXZ      FileType = "xz"
	FileTypeGzip    FileType = "gzip"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes lists the binary signatures recognized by DetectFileType.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeGzip, []byte{0x1f, 0x8b}},
}

// DetectFileType sniffs the first bytes of r. Text content is classified as
// XML or JSON by its first non-space character.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType, nil
		}
	}
	if !isLikelyText(buf) {
		return FileTypeUnknown, nil
	}
	text := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case bytes.HasPrefix(text, []byte("<")):
		return FileTypeXML, nil
	case bytes.HasPrefix(text, []byte("{")):
		return FileTypeJSON, nil
	}
	return FileTypeUnknown, nil
}

// ReadInput reads a user-supplied file after checking its path, its size
// and that its content is of the wanted type.
func ReadInput(path string, want FileType) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	got, err := DetectFileType(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if got != want {
		return nil, fmt.Errorf("%w: %s holds %s, want %s", ErrFileType, path, got, want)
	}
	return data, nil
}

// OutputPath resolves an export destination. A directory gets a file named
// after the sanitized id with the given extension.
func OutputPath(path, id, ext string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path, nil
	}
	name, err := SanitizeFilename(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(path, name+ext), nil
}

// isLikelyText reports whether buf is mostly printable text.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 lead and continuation bytes count as neither
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
