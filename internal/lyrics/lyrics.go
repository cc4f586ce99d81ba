// Package lyrics handles LRC sidecar files: parsing, conversion to SRT
// for subtitle burn-in, and aligning stray sidecars with their tracks.
package lyrics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"tunepress/internal/services"
)

// Line is one timed lyric.
type Line struct {
	At   time.Duration
	Text string
}

// lastLineHold extends the final lyric, which has no successor to end it.
const lastLineHold = 3 * time.Second

// timestampRe matches [mm:ss], [mm:ss.xx] and [mm:ss.xxx] time tags.
// Metadata tags like [ar:...] do not match and are dropped.
var timestampRe = regexp.MustCompile(`\[(\d{1,3}):(\d{2})(?:\.(\d{1,3}))?\]`)

// Parse reads LRC text and returns its lyrics sorted by time. A line
// may carry several time tags; each becomes its own entry. Lines with
// no time tag and empty lyric texts are skipped.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		matches := timestampRe.FindAllStringSubmatchIndex(raw, -1)
		if len(matches) == 0 {
			continue
		}
		text := strings.TrimSpace(raw[matches[len(matches)-1][1]:])
		if text == "" {
			continue
		}
		for _, m := range matches {
			at, ok := parseTimestamp(raw[m[0]:m[1]])
			if !ok {
				continue
			}
			lines = append(lines, Line{At: at, Text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].At < lines[j].At })
	return lines, nil
}

// ParseFile parses the LRC file at path.
func ParseFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "lyrics", "parse", "open lrc file", err)
	}
	defer f.Close()
	return Parse(f)
}

func parseTimestamp(tag string) (time.Duration, bool) {
	sub := timestampRe.FindStringSubmatch(tag)
	if sub == nil {
		return 0, false
	}
	mins, _ := strconv.Atoi(sub[1])
	secs, _ := strconv.Atoi(sub[2])
	d := time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	if sub[3] != "" {
		frac := sub[3]
		for len(frac) < 3 {
			frac += "0"
		}
		ms, _ := strconv.Atoi(frac[:3])
		d += time.Duration(ms) * time.Millisecond
	}
	return d, true
}

// FormatSRT renders the lyrics as SubRip text. Each cue ends where the
// next begins; the last cue holds for lastLineHold.
func FormatSRT(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		end := line.At + lastLineHold
		if i+1 < len(lines) && lines[i+1].At > line.At {
			end = lines[i+1].At
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(line.At), srtTime(end), line.Text)
	}
	return b.String()
}

func srtTime(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ConvertFile converts an LRC file to an SRT file. It reports
// ErrDataAbsent when the LRC holds no timed lyrics, so callers can
// skip burn-in rather than feed the encoder an empty subtitle stream.
func ConvertFile(lrcPath, srtPath string) error {
	lines, err := ParseFile(lrcPath)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return services.Wrap(services.ErrDataAbsent, "lyrics", "convert", "no timed lyrics in "+lrcPath, nil)
	}
	if err := os.WriteFile(srtPath, []byte(FormatSRT(lines)), 0o644); err != nil {
		return services.Wrap(services.ErrIO, "lyrics", "convert", "write srt file", err)
	}
	return nil
}
