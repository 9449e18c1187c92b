package hls

import "strings"

// Resolve turns a segment or key reference from a playlist into an absolute URL.
// Absolute references are returned unchanged, root-relative references are joined with the
// scheme and host of base, and anything else is joined with the directory of base.
// Dot segments are not normalized.
func Resolve(ref, base string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}

	parts := strings.Split(base, "/")
	if strings.HasPrefix(ref, "/") {
		if len(parts) < 3 {
			return ref
		}
		// "http:", "", "host", ...
		return parts[0] + "//" + parts[2] + ref
	}

	return strings.Join(parts[:len(parts)-1], "/") + "/" + ref
}
