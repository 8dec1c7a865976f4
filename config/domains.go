package config

// isDomainName checks whether the given string is a syntactically valid domain name. IP addresses are not
// considered domain names, even though they would otherwise be valid.
func isDomainName(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}

	last := byte('.')
	labelLen := 0
	numeric := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_':
			numeric = false
			labelLen++
		case '0' <= c && c <= '9':
			labelLen++
		case c == '-':
			// Labels can't start with a hyphen
			if last == '.' {
				return false
			}
			numeric = false
			labelLen++
		case c == '.':
			// Labels can't be empty or end with a hyphen
			if last == '.' || last == '-' {
				return false
			}
			if labelLen > 63 {
				return false
			}
			labelLen = 0
			numeric = true
		default:
			return false
		}
		last = c
	}

	return last != '-' && last != '.' && labelLen <= 63 && !numeric
}
