package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sampleBytes bounds how much payload is hashed from each end of a file, so
// fingerprinting stays cheap on large files while still catching payload
// edits near either boundary.
const sampleBytes = 64 * 1024

const id3v1TailSize = 128

// Compute returns a content digest for the file. For MP3 files the ID3v2
// region at the head and the ID3v1 region at the tail are excluded, so
// re-tagging never changes the digest. Equal digests are treated as duplicate
// content by the file namer.
func Compute(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat for fingerprint: %w", err)
	}
	size := info.Size()

	start, end := int64(0), size
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		start, end = audioPayloadSpan(f, size)
	}

	h := sha256.New()
	io.WriteString(h, fmt.Sprintf("%d", end-start))

	span := end - start
	head := span
	if head > sampleBytes {
		head = sampleBytes
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek payload: %w", err)
	}
	if _, err := io.CopyN(h, f, head); err != nil && err != io.EOF {
		return "", fmt.Errorf("read payload head: %w", err)
	}
	if span > sampleBytes {
		tailStart := end - sampleBytes
		if tailStart < start {
			tailStart = start
		}
		if _, err := f.Seek(tailStart, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek payload tail: %w", err)
		}
		if _, err := io.CopyN(h, f, end-tailStart); err != nil && err != io.EOF {
			return "", fmt.Errorf("read payload tail: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// audioPayloadSpan locates the audio frame region of an MP3 file, skipping an
// ID3v2 tag at the head (length from the syncsafe size field) and an ID3v1
// "TAG" block at the tail. Falls back to the whole file when the layout looks
// wrong.
func audioPayloadSpan(f *os.File, size int64) (int64, int64) {
	start, end := int64(0), size

	header := make([]byte, 10)
	if n, err := f.ReadAt(header, 0); err == nil && n == 10 && string(header[:3]) == "ID3" {
		tagSize := int64(header[6]&0x7F)<<21 |
			int64(header[7]&0x7F)<<14 |
			int64(header[8]&0x7F)<<7 |
			int64(header[9]&0x7F)
		start = 10 + tagSize
	}

	if end >= id3v1TailSize {
		tail := make([]byte, 3)
		if n, err := f.ReadAt(tail, end-id3v1TailSize); err == nil && n == 3 && string(tail) == "TAG" {
			end -= id3v1TailSize
		}
	}

	if start >= end {
		return 0, size
	}
	return start, end
}
