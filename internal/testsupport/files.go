package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
)

// TrackSpec describes a synthetic tagged audio file for tests.
type TrackSpec struct {
	Artist  string
	Album   string
	Track   string
	Title   string
	Cover   []byte
	Payload []byte
}

// WriteTrack creates an MP3-shaped file at path: an ID3v2 tag built from the
// spec followed by the payload bytes standing in for audio frames.
func WriteTrack(t testing.TB, path string, spec TrackSpec) {
	t.Helper()

	payload := spec.Payload
	if payload == nil {
		payload = bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64}, 256)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write payload %s: %v", path, err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open tag %s: %v", path, err)
	}
	defer tag.Close()

	if spec.Artist != "" {
		tag.SetArtist(spec.Artist)
	}
	if spec.Album != "" {
		tag.SetAlbum(spec.Album)
	}
	if spec.Title != "" {
		tag.SetTitle(spec.Title)
	}
	if spec.Track != "" {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, spec.Track)
	}
	if spec.Cover != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     spec.Cover,
		})
	}
	if err := tag.Save(); err != nil {
		t.Fatalf("save tag %s: %v", path, err)
	}
}

// PNGBytes returns a small valid PNG image.
func PNGBytes(t testing.TB) []byte {
	t.Helper()
	return encodeImage(t, func(buf *bytes.Buffer, img image.Image) error {
		return png.Encode(buf, img)
	})
}

// JPEGBytes returns a small valid JPEG image.
func JPEGBytes(t testing.TB) []byte {
	t.Helper()
	return encodeImage(t, func(buf *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	})
}

func encodeImage(t testing.TB, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode fixture image: %v", err)
	}
	return buf.Bytes()
}

// WriteFile fills the target path with size bytes of a repeating pattern.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
