package security

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Reasons a file is not worth handing to the parser
var (
	ErrBinary    = errors.New("file appears to be binary")
	ErrDisguised = errors.New("file content does not match its extension")
	ErrMinified  = errors.New("file appears to be minified")
)

// FileValidator screens source files before they are parsed. Binary and
// disguised files are rejected at any size; the minified-output check only
// runs on files larger than ValidationThreshold.
type FileValidator struct {
	ValidationThreshold int64 // Files larger than this get the minified check
	HeaderSize          int64 // Bytes inspected from the start of the file
	MaxLineLength       int   // A longer line in the header marks generated code; 0 disables
}

func NewFileValidator(thresholdKB int64) *FileValidator {
	return &FileValidator{
		ValidationThreshold: thresholdKB * 1024,
		HeaderSize:          64 * 1024,
		MaxLineLength:       2000,
	}
}

// Validate inspects the header of content. It returns nil for anything that
// looks like hand-written source text.
func (fv *FileValidator) Validate(path string, content []byte) error {
	header := content
	if fv.HeaderSize > 0 && int64(len(header)) > fv.HeaderSize {
		header = header[:fv.HeaderSize]
	}

	if err := fv.checkMagicBytes(path, header); err != nil {
		return err
	}
	if fv.isBinaryData(header) {
		return ErrBinary
	}
	if int64(len(content)) > fv.ValidationThreshold && fv.isMinified(header) {
		return fmt.Errorf("%w (a line exceeds %d characters)", ErrMinified, fv.MaxLineLength)
	}
	return nil
}

// File signatures that never start a script
var magicBytes = map[string][]byte{
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"jpeg": {0xFF, 0xD8, 0xFF},
	"gif":  []byte("GIF8"),
	"pdf":  []byte("%PDF-"),
	"zip":  {0x50, 0x4B, 0x03, 0x04},
	"pe":   {0x4D, 0x5A, 0x90, 0x00},
	"elf":  {0x7F, 0x45, 0x4C, 0x46},
	"wasm": {0x00, 0x61, 0x73, 0x6D},
}

// checkMagicBytes rejects a script extension on a known binary format
func (fv *FileValidator) checkMagicBytes(path string, header []byte) error {
	ext := strings.ToLower(filepath.Ext(path))
	for format, magic := range magicBytes {
		if bytes.HasPrefix(header, magic) {
			return fmt.Errorf("%w: %s data in a %s file", ErrDisguised, format, ext)
		}
	}
	return nil
}

// isBinaryData reports a NUL byte, or more than 30% control characters
func (fv *FileValidator) isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// Control characters other than tab, LF, VT, FF, CR, and DEL
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}

// isMinified reports a line in data longer than MaxLineLength
func (fv *FileValidator) isMinified(data []byte) bool {
	if fv.MaxLineLength <= 0 {
		return false
	}
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return len(data) > fv.MaxLineLength
		}
		if i > fv.MaxLineLength {
			return true
		}
		data = data[i+1:]
	}
	return false
}
