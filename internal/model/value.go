package model

import (
	"math"
	"strconv"
	"strings"
)

// ParseValue converts a raw table cell into a finite number. Surrounding
// whitespace and thousands separators are ignored. Empty cells, text such as
// "N/A", and non-finite results (NaN, Inf) are reported as absent.
func ParseValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Finite reports whether v is usable as a classification input.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
