package utils

// FirstNonEmpty returns the first value that is not the zero value of T.
func FirstNonEmpty[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
