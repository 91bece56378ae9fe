package util

import "time"

const DateLayout = "2006-01-02"

// Today returns the current server date at day granularity.
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

const DefaultPageSize = 10

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}
