package enforce

import "strings"

// ParseForwarded splits the value of a Forwarded header into its key=value pairs.
//
// Pairs are separated by semicolons, and whitespace around pairs, keys and values is ignored.
// Keys are lower-cased. A pair without an "=" is kept as a key with an empty value. If a key
// appears more than once the last value wins. Quoted values are returned as-is.
func ParseForwarded(value string) map[string]string {
	res := make(map[string]string)
	for _, part := range strings.Split(strings.TrimSpace(value), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, val, _ := strings.Cut(part, "=")
		res[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return res
}
