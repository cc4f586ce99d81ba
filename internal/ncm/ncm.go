// Package ncm reads just enough of the NCM container format to salvage
// the embedded cover image. Audio decryption stays in the external
// decoder; this package never touches the audio payload.
package ncm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tunepress/internal/services"
)

// magic opens every NCM container.
var magic = []byte("CTENFDAM")

// maxSectionBytes bounds any length field read from the header. A value
// above this means a corrupt or truncated container.
const maxSectionBytes = 64 << 20

// IsContainer reports whether path names an NCM container by extension.
func IsContainer(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ncm")
}

// ExtractCover returns the embedded cover image bytes. The header walk
// is: magic, 2 gap bytes, length-prefixed key block, length-prefixed
// metadata block, 4 CRC bytes, 5 gap bytes, then the length-prefixed
// image. All lengths are little-endian uint32. ErrDataAbsent means a
// well-formed container without an image.
func ExtractCover(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "ncm", "extract cover", "open container", err)
	}
	defer f.Close()

	data, err := readCover(f)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "ncm", "extract cover", path, err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrDataAbsent, "ncm", "extract cover", "container has no image: "+path, nil)
	}
	return data, nil
}

func readCover(r io.Reader) ([]byte, error) {
	header := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, fmt.Errorf("not an ncm container")
	}

	if err := skipSection(r, "key"); err != nil {
		return nil, err
	}
	if err := skipSection(r, "metadata"); err != nil {
		return nil, err
	}
	// CRC plus gap bytes before the image block.
	if _, err := io.CopyN(io.Discard, r, 4+5); err != nil {
		return nil, fmt.Errorf("skip crc: %w", err)
	}

	size, err := readLength(r, "image")
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	image := make([]byte, size)
	if _, err := io.ReadFull(r, image); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return image, nil
}

func skipSection(r io.Reader, name string) error {
	size, err := readLength(r, name)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
		return fmt.Errorf("skip %s: %w", name, err)
	}
	return nil
}

func readLength(r io.Reader, name string) (uint32, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, fmt.Errorf("read %s length: %w", name, err)
	}
	if size > maxSectionBytes {
		return 0, fmt.Errorf("%s section of %d bytes exceeds sanity bound", name, size)
	}
	return size, nil
}
