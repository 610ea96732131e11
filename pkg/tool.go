package pkg

// Contains check source have target
func Contains(slice []string, val string) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// SortPair return the two ids in lexicographic order.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
