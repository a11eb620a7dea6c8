package notification

import "strings"

// SplitAddressList splits a delimited address string on commas, semicolons
// and newlines. Entries are trimmed and empty entries dropped; order is kept.
func SplitAddressList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
