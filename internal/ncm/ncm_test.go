package ncm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tunepress/internal/services"
)

// buildContainer assembles a minimal NCM header around the given image.
func buildContainer(t *testing.T, image []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("CTENFDAM")
	buf.Write([]byte{0, 0})

	writeSection := func(data []byte) {
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}
	writeSection([]byte("encrypted-key-block"))
	writeSection([]byte(`163 key(Don't modify):...`))
	buf.Write([]byte{1, 2, 3, 4})    // crc
	buf.Write([]byte{0, 0, 0, 0, 0}) // gap
	writeSection(image)
	buf.WriteString("audio payload follows")
	return buf.Bytes()
}

func writeContainer(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.ncm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractCover(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 'c', 'o', 'v', 'e', 'r'}
	path := writeContainer(t, buildContainer(t, image))

	got, err := ExtractCover(path)
	if err != nil {
		t.Fatalf("ExtractCover: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatalf("cover = %v, want %v", got, image)
	}
}

func TestExtractCoverNoImage(t *testing.T) {
	path := writeContainer(t, buildContainer(t, nil))

	_, err := ExtractCover(path)
	if !errors.Is(err, services.ErrDataAbsent) {
		t.Fatalf("err = %v, want ErrDataAbsent", err)
	}
}

func TestExtractCoverBadMagic(t *testing.T) {
	path := writeContainer(t, []byte("ID3\x04\x00 definitely not a container"))

	_, err := ExtractCover(path)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestExtractCoverTruncated(t *testing.T) {
	full := buildContainer(t, []byte("image-bytes"))
	path := writeContainer(t, full[:len(full)-30])

	_, err := ExtractCover(path)
	if err == nil {
		t.Fatal("expected error for truncated container")
	}
}

func TestExtractCoverInsaneLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("CTENFDAM")
	buf.Write([]byte{0, 0})
	binary.Write(&buf, binary.LittleEndian, uint32(1<<30))
	path := writeContainer(t, buf.Bytes())

	_, err := ExtractCover(path)
	if err == nil {
		t.Fatal("expected error for oversized section")
	}
}

func TestIsContainer(t *testing.T) {
	if !IsContainer("/music/song.NCM") {
		t.Fatal("upper-case extension not recognized")
	}
	if IsContainer("/music/song.mp3") {
		t.Fatal("mp3 misidentified as container")
	}
}
