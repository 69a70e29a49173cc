package convert

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// enough for all filetype matchers
const headSize = 262

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, headSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

// isArchiveFile checks content signature, epub files are zip archives too.
func isArchiveFile(path string) (bool, error) {
	head, err := readHead(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(head, "zip") || filetype.Is(head, "epub"), nil
}

func isStylesheetName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".css")
}

// isStylesheetFile checks extension and makes sure content is not something
// binary wearing .css extension.
func isStylesheetFile(path string) (bool, error) {
	if !isStylesheetName(path) {
		return false, nil
	}
	head, err := readHead(path)
	if err != nil {
		return false, err
	}
	if len(head) == 0 {
		return true, nil
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return false, err
	}
	return kind == filetype.Unknown, nil
}

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func (e srcEncoding) String() string {
	switch e {
	case encUTF8:
		return "UTF-8"
	case encUTF16BigEndian:
		return "UTF-16BE"
	case encUTF16LittleEndian:
		return "UTF-16LE"
	case encUTF32BigEndian:
		return "UTF-32BE"
	case encUTF32LittleEndian:
		return "UTF-32LE"
	default:
		return "unknown"
	}
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

// detectUTF looks at byte order mark. UTF-32LE must be checked before
// UTF-16LE as they share first two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	default:
		return encUnknown
	}
}

// toUTF8 returns stylesheet text as UTF-8 without byte order mark.
func toUTF8(data []byte) ([]byte, srcEncoding, error) {
	enc := detectUTF(data)

	var (
		out []byte
		err error
	)
	switch enc {
	case encUnknown:
		return data, enc, nil
	case encUTF8:
		return data[3:], enc, nil
	case encUTF16BigEndian:
		out, err = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	case encUTF16LittleEndian:
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	case encUTF32BigEndian:
		out, err = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder().Bytes(data)
	case encUTF32LittleEndian:
		out, err = utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder().Bytes(data)
	}
	if err != nil {
		return nil, enc, fmt.Errorf("unable to decode %s stylesheet: %w", enc, err)
	}
	return out, enc, nil
}
