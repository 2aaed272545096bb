package video

import "regexp"

// Scheme and www. are optional, the id-bearing segment is 11 characters.
var referencePattern = regexp.MustCompile(
	`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|.+\?v=)?([^&=%\?]{11})`,
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func IsValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}

// IdentifierFromReference returns the 11-character id segment of a reference.
func IdentifierFromReference(ref string) (string, bool) {
	m := referencePattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[6], true
}

// IsValidKey reports whether id can be used as a record key on disk.
func IsValidKey(id string) bool {
	return len(id) <= 128 && keyPattern.MatchString(id)
}

func CanonicalReference(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
