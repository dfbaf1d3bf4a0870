package monitor

import "strings"

// Slugify normalizes a raw monitor slug the same way for every
// producer: lowercase, alphanumeric runs joined by single dashes,
// clamped to MaxSlugLength. A clamp can leave a trailing dash, so
// dashes are trimmed again after it.
func Slugify(raw string) string {
	var sb strings.Builder
	lastDash := true // suppress a leading dash

	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := sb.String()
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	return strings.Trim(slug, "-")
}
