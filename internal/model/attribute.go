// Package model defines the records shared by the choropleth pipeline: the
// enumerated attributes, polygon records, and fact rows.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// AttributeName identifies one of the known socioeconomic attributes. Its
// value is the exact column header used by the fact table.
type AttributeName string

const (
	MedianIncome AttributeName = "Median income per household"
	MeanIncome   AttributeName = "Mean income per household"
	Population   AttributeName = "Population"
	GDP          AttributeName = "GDP in Thousands of Chained Dollars"
	Unemployment AttributeName = "Average Monthly Unemployment"
)

// DefaultAttribute is the attribute expressed at startup.
const DefaultAttribute = MedianIncome

// ErrUnknownAttribute is returned when a name matches no known attribute.
var ErrUnknownAttribute = eris.New("model: unknown attribute")

// attributeSlugs maps URL/flag friendly names onto attributes.
var attributeSlugs = map[string]AttributeName{
	"median-income": MedianIncome,
	"mean-income":   MeanIncome,
	"population":    Population,
	"gdp":           GDP,
	"unemployment":  Unemployment,
}

// Attributes returns the known attributes in display order.
func Attributes() []AttributeName {
	return []AttributeName{MedianIncome, MeanIncome, Population, GDP, Unemployment}
}

// Valid reports whether a is one of the known attributes.
func (a AttributeName) Valid() bool {
	for _, known := range Attributes() {
		if a == known {
			return true
		}
	}
	return false
}

// Slug returns the short name of a, or "" for an unknown attribute.
func (a AttributeName) Slug() string {
	for slug, attr := range attributeSlugs {
		if attr == a {
			return slug
		}
	}
	return ""
}

func (a AttributeName) String() string { return string(a) }

// ParseAttribute resolves either the full column name or the slug.
func ParseAttribute(s string) (AttributeName, error) {
	s = strings.TrimSpace(s)
	if a := AttributeName(s); a.Valid() {
		return a, nil
	}
	if a, ok := attributeSlugs[strings.ToLower(s)]; ok {
		return a, nil
	}
	return "", eris.Wrapf(ErrUnknownAttribute, "%q", s)
}
