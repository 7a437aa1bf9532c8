package helpers

import "strings"

// ParseCSVList splits a comma separated flag value, dropping blanks.
func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseCSVValues flattens repeated form fields, each of which may itself be
// a comma separated list.
func ParseCSVValues(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, ParseCSVList(v)...)
	}
	return out
}
