package util

import (
	"regexp"
	"strings"
	"unicode"
)

// Pre-compiled regex for WebFinger username validation
var webFingerValidCharsRegex = regexp.MustCompile(`^[A-Za-z0-9\-._~!$&'()*+,;=]+$`)

// Hashtag names may contain letters, numbers and connecting punctuation
// (underscore, middle dot), but nothing else. Mirrors what the big
// fediverse servers accept.
var hashtagNameRegex = regexp.MustCompile(`^[\pL\pN_·]+$`)

// IsValidWebFingerUsername validates that a username meets WebFinger/ActivityPub requirements.
//
// WebFinger allows these characters without percent-encoding:
// A-Z a-z 0-9 - . _ ~ ! $ & ' ( ) * + , ; =
//
// Any other Unicode character must be percent-encoded and is rejected here.
// Non-printable/control characters are also rejected.
//
// Returns (true, "") if valid, or (false, "error message") if invalid.
func IsValidWebFingerUsername(username string) (bool, string) {
	if len(username) == 0 {
		return false, "Username must be at least 1 character"
	}

	if !webFingerValidCharsRegex.MatchString(username) {
		return false, "Username contains invalid characters. Only A-Z, a-z, 0-9, and -._~!$&'()*+,;= are allowed"
	}

	for _, r := range username {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			return false, "Username contains non-printable characters"
		}
	}

	return true, ""
}

// NormalizeHashtagName strips a leading '#' and lowercases the tag name.
func NormalizeHashtagName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "#"))
}

// IsValidHashtagName reports whether a normalized hashtag name is
// acceptable. Tags with disallowed punctuation are dropped by callers, not
// treated as errors.
func IsValidHashtagName(name string) bool {
	if name == "" {
		return false
	}
	return hashtagNameRegex.MatchString(name)
}
