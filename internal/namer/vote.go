package namer

import (
	"tunepress/internal/library"
	"tunepress/internal/textutil"
)

// vote tallies normalized values while remembering first-seen display forms
// and order, so plurality winners and tie-breaks are deterministic for a
// fixed member ordering.
type vote struct {
	counts  map[string]int
	display map[string]string
	order   []string
}

func newVote() *vote {
	return &vote{counts: map[string]int{}, display: map[string]string{}}
}

func (v *vote) add(value string) {
	key := textutil.NormalizeVote(value)
	if key == "" {
		return
	}
	if _, seen := v.counts[key]; !seen {
		v.display[key] = value
		v.order = append(v.order, key)
	}
	v.counts[key]++
}

// winner returns the display form of the plurality value; ties break toward
// the earliest added value.
func (v *vote) winner() (string, bool) {
	best, bestCount := "", 0
	for _, key := range v.order {
		if v.counts[key] > bestCount {
			best, bestCount = key, v.counts[key]
		}
	}
	if bestCount == 0 {
		return "", false
	}
	return v.display[best], true
}

// electAlbum picks the group's canonical (artist, album) pair: the plurality
// album over all members, then the plurality artist among members voting for
// that album. Tracks with an empty album tag abstain entirely.
func electAlbum(group *library.Group) (artist, album string, ok bool) {
	albums := newVote()
	for _, track := range group.Tracks {
		t := track.Tags()
		if t.Album == "" || t.Artist == "" {
			continue
		}
		albums.add(t.Album)
	}
	album, ok = albums.winner()
	if !ok {
		return "", "", false
	}

	albumKey := textutil.NormalizeVote(album)
	artists := newVote()
	for _, track := range group.Tracks {
		t := track.Tags()
		if t.Artist == "" || textutil.NormalizeVote(t.Album) != albumKey {
			continue
		}
		artists.add(t.Artist)
	}
	artist, ok = artists.winner()
	if !ok {
		return "", "", false
	}
	return artist, album, true
}

// CanonicalPair exposes the elected (artist, album) pair for callers that
// need it beyond naming, such as remote cover lookup.
func CanonicalPair(group *library.Group) (artist, album string, ok bool) {
	return electAlbum(group)
}
