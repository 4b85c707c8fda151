package common

func Filter[T any](slice []T, f func(T) bool) []T {
	result := []T{}
	for _, item := range slice {
		if f(item) {
			result = append(result, item)
		}
	}
	return result
}

// Page returns the window [offset, offset+limit) of slice, clamped to its bounds
func Page[T any](slice []T, limit, offset int) []T {
	if offset < 0 || offset >= len(slice) {
		return []T{}
	}

	end := offset + limit
	if limit <= 0 || end > len(slice) {
		end = len(slice)
	}

	return slice[offset:end]
}
