package main

import (
	"strconv"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/normalize"
)

func formatYears(first, last int) string {
	if first == last {
		return strconv.Itoa(first)
	}
	return strconv.Itoa(first) + "-" + strconv.Itoa(last)
}

// monthName returns the Portuguese month name for 1..12.
func monthName(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	return normalize.MonthNames[m-1]
}
