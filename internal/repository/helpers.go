package repository

import (
	"errors"
	"time"

	"github.com/plovers390-cloud/ScrimX/internal/domain"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("record not found")

// nullStringOrValue maps empty strings to NULL columns.
func nullStringOrValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intsToInt32(nums []int) []int32 {
	out := make([]int32, len(nums))
	for i, n := range nums {
		out[i] = int32(n)
	}
	return out
}

func int32sToInts(nums []int32) []int {
	out := make([]int, len(nums))
	for i, n := range nums {
		out[i] = int(n)
	}
	return out
}

func weekdaysToInt32(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func int32sToWeekdays(days []int32) []time.Weekday {
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func autocleanToStrings(types []domain.AutocleanType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func stringsToAutoclean(values []string) []domain.AutocleanType {
	out := make([]domain.AutocleanType, len(values))
	for i, v := range values {
		out[i] = domain.AutocleanType(v)
	}
	return out
}
