// Package security rejects metadata files that are not text before they
// reach a parser: binaries saved under the metadata extension, truncated
// uploads, images renamed by mistake.
package security

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultHeaderSize is how much of a file the binary check samples.
const DefaultHeaderSize = 64 * 1024

var (
	ErrBinaryContent = errors.New("file appears to be binary")
	ErrInvalidUTF8   = errors.New("file is not valid UTF-8")
)

// signature is a known binary file header.
type signature struct {
	name  string
	magic []byte
}

var signatures = []signature{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"gif", []byte("GIF8")},
	{"dds", []byte("DDS ")},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"pdf", []byte("%PDF-")},
	{"executable", []byte{0x4D, 0x5A}},
}

// MetadataValidator checks that a metadata file holds text.
type MetadataValidator struct {
	HeaderSize int
}

func NewMetadataValidator() *MetadataValidator {
	return &MetadataValidator{HeaderSize: DefaultHeaderSize}
}

// Validate returns an error when data is not a plausible text document.
func (v *MetadataValidator) Validate(data []byte) error {
	header := data
	if v.HeaderSize > 0 && len(header) > v.HeaderSize {
		header = header[:v.HeaderSize]
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.magic) {
			return fmt.Errorf("%w: %s signature", ErrBinaryContent, sig.name)
		}
	}
	if isBinaryData(header) {
		return ErrBinaryContent
	}
	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	return nil
}

// isBinaryData reports a NUL byte or more than 30% control characters.
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// control characters other than tab, LF, VT, FF and CR, plus DEL
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}
