package tutor

import "strings"

// MIME types recognized from base64 payload prefixes.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
)

var imageSignatures = []struct {
	prefix string
	mime   string
}{
	{"/9j/", MIMEJPEG},
	{"iVBORw", MIMEPNG},
	{"R0lGOD", MIMEGIF},
	{"UklGR", MIMEWEBP},
}

// StripDataURL removes a "data:...;base64," prefix up to the first comma.
func StripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// SniffImageType guesses the MIME type of a base64 image. Unrecognized
// payloads are reported as JPEG.
func SniffImageType(b64 string) string {
	for _, sig := range imageSignatures {
		if strings.HasPrefix(b64, sig.prefix) {
			return sig.mime
		}
	}
	return MIMEJPEG
}
