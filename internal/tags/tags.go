package tags

import (
	"strconv"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
)

// Tags holds the four canonical fields read from a track. Every field is
// optional; absence and parse failures both yield the empty string.
type Tags struct {
	Artist string
	Album  string
	Track  string
	Title  string
}

// Read extracts the canonical fields from an audio file. Malformed or missing
// tag frames never fail the read; they simply leave fields empty.
func Read(path string) Tags {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}
	}
	defer tag.Close()

	return Tags{
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
		Track:  strings.TrimSpace(tag.GetTextFrame("TRCK").Text),
		Title:  strings.TrimSpace(tag.Title()),
	}
}

// ParseTrackNumber parses a TRCK value of the form "N" or "N/M", discarding
// the denominator. Returns false when no integer can be extracted.
func ParseTrackNumber(raw string) (int, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}
	if idx := strings.IndexByte(value, '/'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	value = strings.Join(strings.Fields(value), "")
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// TrackNumber returns the parsed track index for the Track field.
func (t Tags) TrackNumber() (int, bool) {
	return ParseTrackNumber(t.Track)
}
