// Package geometry holds polygon layers keyed by a name property. A Store is
// built once at load time; its records are enriched in place by the join and
// are never removed.
package geometry

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/choropleth/internal/model"
)

// Store is one loaded polygon layer.
type Store struct {
	Layer   string
	Records []*model.PolygonRecord

	index map[string][]*model.PolygonRecord
	keys  []string
}

// NewStore indexes records by key. Records with an empty key are kept for
// rendering but are not reachable through Lookup.
func NewStore(layer string, records []*model.PolygonRecord) *Store {
	s := &Store{
		Layer:   layer,
		Records: records,
		index:   make(map[string][]*model.PolygonRecord, len(records)),
	}
	for _, r := range records {
		if r.Key == "" {
			continue
		}
		if _, seen := s.index[r.Key]; !seen {
			s.keys = append(s.keys, r.Key)
		}
		s.index[r.Key] = append(s.index[r.Key], r)
	}
	return s
}

// Lookup returns every record sharing key, in load order.
func (s *Store) Lookup(key string) []*model.PolygonRecord {
	if s == nil {
		return nil
	}
	return s.index[key]
}

// Keys returns the distinct non-empty keys in load order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len is the number of records, keyed or not.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Bounds is the lon/lat extent of every non-nil geometry in the layer, or nil
// when the layer has none.
func (s *Store) Bounds() *geom.Bounds {
	if s == nil {
		return nil
	}
	var b *geom.Bounds
	for _, r := range s.Records {
		if r.Geometry == nil {
			continue
		}
		rb := r.Geometry.Bounds()
		if rb.IsEmpty() {
			continue
		}
		if b == nil {
			b = rb.Clone()
			continue
		}
		b.Extend(r.Geometry)
	}
	return b
}
