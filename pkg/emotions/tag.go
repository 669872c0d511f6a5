package emotions

import (
	"fmt"
	"strings"
)

// ParseTag parses a bracketed emotion tag such as "[happy]" and returns the
// bare identifier.
func ParseTag(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	id := s[1 : len(s)-1]
	if !validIdent(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	return id, nil
}

// FormatTag returns the bracketed form of a bare identifier.
func FormatTag(id string) string {
	return "[" + id + "]"
}

// Normalize accepts either a bracketed tag or a bare identifier and returns
// the lowercase bare identifier, or "" if s is not a valid tag.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "[") {
		id, err := ParseTag(s)
		if err != nil {
			return ""
		}
		return id
	}
	if !validIdent(s) {
		return ""
	}
	return s
}

// Extract pulls every bracketed tag out of a transcript line. It returns the
// tags in order of appearance and the text with the tags removed.
func Extract(content string) ([]string, string) {
	var (
		tags []string
		b    strings.Builder
	)
	for i := 0; i < len(content); {
		if content[i] == '[' {
			if end := strings.IndexByte(content[i:], ']'); end > 0 {
				if id, err := ParseTag(content[i : i+end+1]); err == nil {
					tags = append(tags, id)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(content[i])
		i++
	}
	return tags, strings.Join(strings.Fields(b.String()), " ")
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return false
		}
	}
	return true
}
