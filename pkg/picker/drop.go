package picker

import (
	"net/url"
	"strings"
	"unicode"
)

// ParseDropped splits the text a terminal inserts when files are dropped or pasted onto it.
// Entries may be separated by whitespace or newlines, quoted, backslash-escaped, or file:// URIs.
// Inside double quotes a backslash escapes only a quote or another backslash.
func ParseDropped(text string) []string {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			if p := normalizeDropped(cur.String()); p != "" {
				out = append(out, p)
			}
		}
		cur.Reset()
		started = false
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote == 0:
			escaped = true
			started = true
		case r == '\\' && quote == '"' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			// inside double quotes only a quote or a backslash is escaped; C:\Users stays intact
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			started = true
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return out
}

func normalizeDropped(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Path == "" {
		return ""
	}
	return u.Path
}

// FirstDropped picks the entry a drop resolves to. The rest are ignored.
func FirstDropped(paths []string) (string, bool) {
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			return p, true
		}
	}
	return "", false
}
