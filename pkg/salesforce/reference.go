package salesforce

// ValidReferenceID reports whether s has the shape of a Salesforce record ID:
// exactly 15 alphanumeric characters, or 18 alphanumeric characters whose
// 3-character suffix matches the checksum derived from the first 15.
func ValidReferenceID(s string) bool {
	switch len(s) {
	case 15:
		return alphanumeric(s)
	case 18:
		if !alphanumeric(s) {
			return false
		}
		return checksumSuffix(s[:15]) == s[15:]
	default:
		return false
	}
}

// alphanumeric reports whether s contains only ASCII letters and digits
func alphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			continue
		}
		return false
	}
	return true
}

// checksumSuffix computes the 3-character case-safety suffix for a 15-character
// record ID. Each group of 5 characters forms a 5-bit number (bit set where the
// character is an uppercase letter, least significant bit first) indexing into
// the suffix alphabet.
func checksumSuffix(id15 string) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"

	suffix := make([]byte, 3)
	for group := 0; group < 3; group++ {
		index := 0
		for pos := 0; pos < 5; pos++ {
			c := id15[group*5+pos]
			if c >= 'A' && c <= 'Z' {
				index |= 1 << pos
			}
		}
		suffix[group] = alphabet[index]
	}
	return string(suffix)
}
