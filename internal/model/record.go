package model

import (
	"github.com/twpayne/go-geom"
)

// PolygonRecord is one enumeration unit: a keyed geometry plus the attribute
// values joined onto it. An attribute missing from Attributes is absent.
type PolygonRecord struct {
	Key        string
	Geometry   geom.T
	Properties map[string]any
	Attributes map[AttributeName]float64
}

// NewPolygonRecord creates a record with no attribute values.
func NewPolygonRecord(key string, g geom.T, props map[string]any) *PolygonRecord {
	if props == nil {
		props = map[string]any{}
	}
	return &PolygonRecord{
		Key:        key,
		Geometry:   g,
		Properties: props,
		Attributes: map[AttributeName]float64{},
	}
}

// Value returns the attribute value and whether it is defined.
func (r *PolygonRecord) Value(attr AttributeName) (float64, bool) {
	if r == nil || r.Attributes == nil {
		return 0, false
	}
	v, ok := r.Attributes[attr]
	return v, ok
}

// Set stores a defined value for attr.
func (r *PolygonRecord) Set(attr AttributeName, v float64) {
	if r.Attributes == nil {
		r.Attributes = map[AttributeName]float64{}
	}
	r.Attributes[attr] = v
}

// Clear marks attr as absent.
func (r *PolygonRecord) Clear(attr AttributeName) {
	delete(r.Attributes, attr)
}

// HasData reports whether any attribute value is defined.
func (r *PolygonRecord) HasData() bool {
	return len(r.Attributes) > 0
}

// FactRow is a parsed row of the fact table. Values hold the raw cells; use
// Value to read one as a number.
type FactRow struct {
	Key    string
	Values map[AttributeName]string
}

// Value parses the raw cell for attr.
func (f FactRow) Value(attr AttributeName) (float64, bool) {
	raw, ok := f.Values[attr]
	if !ok {
		return 0, false
	}
	return ParseValue(raw)
}
