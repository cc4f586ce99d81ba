package tags

import (
	id3v2 "github.com/bogem/id3v2/v2"
)

// HasEmbeddedCover reports whether the file carries an attached picture frame.
func HasEmbeddedCover(path string) bool {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return false
	}
	defer tag.Close()
	return len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
}

// ExtractCover returns the bytes of the first attached picture frame. The
// frame's claimed mime type is ignored by callers, which sniff the true
// format from the bytes instead.
func ExtractCover(path string) ([]byte, bool) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, false
	}
	defer tag.Close()

	for _, framer := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := framer.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		if len(pic.Picture) == 0 {
			continue
		}
		data := make([]byte, len(pic.Picture))
		copy(data, pic.Picture)
		return data, true
	}
	return nil, false
}

// WriteCover replaces any attached pictures on the file with a single front
// cover frame carrying the provided image bytes.
func WriteCover(path string, data []byte, mime string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mime,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     data,
	})
	return tag.Save()
}
