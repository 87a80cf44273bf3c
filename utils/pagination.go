package utils

import "strconv"

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Pagination is the envelope returned alongside every paginated listing.
type Pagination struct {
	TotalEvents uint64 `json:"totalEvents"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
	Limit       int    `json:"limit"`
}

// ParsePage parses a 1-based page number, defaulting to 1.
func ParsePage(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseLimit parses a page size, clamped to [1, MaxPageSize].
func ParseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// TotalPages computes ceil(total/limit); zero matching rows means zero pages.
func TotalPages(total uint64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + uint64(limit) - 1) / uint64(limit))
}
