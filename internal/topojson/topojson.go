// Package topojson decodes TopoJSON topologies into go-geom geometries.
//
// Arcs are shared between adjacent polygons and, when the topology carries a
// transform, quantized and delta-encoded. Decode resolves both so callers only
// ever see absolute coordinates.
package topojson

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Transform maps quantized integer positions back to coordinates.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

func (t *Transform) apply(x, y float64) (float64, float64) {
	if t == nil {
		return x, y
	}
	return x*t.Scale[0] + t.Translate[0], y*t.Scale[1] + t.Translate[1]
}

// Topology is a decoded TopoJSON document.
type Topology struct {
	Type      string                     `json:"type"`
	BBox      []float64                  `json:"bbox,omitempty"`
	Transform *Transform                 `json:"transform,omitempty"`
	Arcs      [][][]float64              `json:"arcs"`
	Objects   map[string]json.RawMessage `json:"objects"`

	// arcs with the transform and delta decoding applied, as flat XY coordinates
	decoded [][]float64
}

// Feature is one geometry object with its identifier and properties.
type Feature struct {
	ID         any
	Properties map[string]any
	Geometry   geom.T
}

type object struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []object        `json:"geometries,omitempty"`
}

// Decode reads a topology and pre-decodes its arcs.
func Decode(r io.Reader) (*Topology, error) {
	var t Topology
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, eris.Wrap(err, "topojson: decode")
	}
	if t.Type != "Topology" {
		return nil, eris.Errorf("topojson: expected type Topology, got %q", t.Type)
	}

	t.decoded = make([][]float64, len(t.Arcs))
	for i, arc := range t.Arcs {
		flat := make([]float64, 0, 2*len(arc))
		var x, y float64
		for j, pos := range arc {
			if len(pos) < 2 {
				return nil, eris.Errorf("topojson: arc %d position %d has %d values", i, j, len(pos))
			}
			if t.Transform != nil {
				x += pos[0]
				y += pos[1]
			} else {
				x, y = pos[0], pos[1]
			}
			px, py := t.Transform.apply(x, y)
			flat = append(flat, px, py)
		}
		t.decoded[i] = flat
	}

	return &t, nil
}

// ObjectNames lists the named objects in sorted order.
func (t *Topology) ObjectNames() []string {
	names := make([]string, 0, len(t.Objects))
	for name := range t.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Features converts the named object into features. A GeometryCollection
// yields one feature per member; any other object yields a single feature.
func (t *Topology) Features(name string) ([]Feature, error) {
	raw, ok := t.Objects[name]
	if !ok {
		return nil, eris.Errorf("topojson: object %q not found (have %v)", name, t.ObjectNames())
	}

	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrapf(err, "topojson: decode object %q", name)
	}

	members := []object{obj}
	if obj.Type == "GeometryCollection" {
		members = obj.Geometries
	}

	features := make([]Feature, 0, len(members))
	for i, m := range members {
		g, err := t.geometry(m)
		if err != nil {
			return nil, eris.Wrapf(err, "topojson: object %q member %d", name, i)
		}
		props := m.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, Feature{ID: m.ID, Properties: props, Geometry: g})
	}
	return features, nil
}

func (t *Topology) geometry(o object) (geom.T, error) {
	switch o.Type {
	case "", "null":
		return nil, nil
	case "Point":
		var c []float64
		if err := json.Unmarshal(o.Coordinates, &c); err != nil {
			return nil, eris.Wrap(err, "point coordinates")
		}
		flat, err := t.position(c)
		if err != nil {
			return nil, err
		}
		return geom.NewPointFlat(geom.XY, flat), nil
	case "MultiPoint":
		var cs [][]float64
		if err := json.Unmarshal(o.Coordinates, &cs); err != nil {
			return nil, eris.Wrap(err, "multipoint coordinates")
		}
		flat := make([]float64, 0, 2*len(cs))
		for _, c := range cs {
			p, err := t.position(c)
			if err != nil {
				return nil, err
			}
			flat = append(flat, p...)
		}
		return geom.NewMultiPointFlat(geom.XY, flat), nil
	case "LineString":
		var arcs []int
		if err := json.Unmarshal(o.Arcs, &arcs); err != nil {
			return nil, eris.Wrap(err, "linestring arcs")
		}
		flat, err := t.line(arcs)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil
	case "MultiLineString":
		var lines [][]int
		if err := json.Unmarshal(o.Arcs, &lines); err != nil {
			return nil, eris.Wrap(err, "multilinestring arcs")
		}
		mls := geom.NewMultiLineString(geom.XY)
		for _, arcs := range lines {
			flat, err := t.line(arcs)
			if err != nil {
				return nil, err
			}
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
				return nil, eris.Wrap(err, "multilinestring push")
			}
		}
		return mls, nil
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(o.Arcs, &rings); err != nil {
			return nil, eris.Wrap(err, "polygon arcs")
		}
		return t.polygon(rings)
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(o.Arcs, &polys); err != nil {
			return nil, eris.Wrap(err, "multipolygon arcs")
		}
		mp := geom.NewMultiPolygon(geom.XY)
		for _, rings := range polys {
			p, err := t.polygon(rings)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(p); err != nil {
				return nil, eris.Wrap(err, "multipolygon push")
			}
		}
		return mp, nil
	case "GeometryCollection":
		gc := geom.NewGeometryCollection()
		for _, member := range o.Geometries {
			g, err := t.geometry(member)
			if err != nil {
				return nil, err
			}
			if g == nil {
				continue
			}
			if err := gc.Push(g); err != nil {
				return nil, eris.Wrap(err, "geometrycollection push")
			}
		}
		return gc, nil
	default:
		return nil, eris.Errorf("unsupported geometry type %q", o.Type)
	}
}

// position decodes a quantized point. Points are never delta-encoded.
func (t *Topology) position(c []float64) ([]float64, error) {
	if len(c) < 2 {
		return nil, eris.Errorf("position has %d values", len(c))
	}
	x, y := t.Transform.apply(c[0], c[1])
	return []float64{x, y}, nil
}

// line stitches arcs end to end. A negative index ~i is arc i reversed. The
// first point of every arc after the first repeats the previous end and is dropped.
func (t *Topology) line(arcs []int) ([]float64, error) {
	var flat []float64
	for n, idx := range arcs {
		reversed := idx < 0
		if reversed {
			idx = ^idx
		}
		if idx >= len(t.decoded) {
			return nil, eris.Errorf("arc index %d out of range (%d arcs)", idx, len(t.decoded))
		}
		arc := t.decoded[idx]
		points := len(arc) / 2
		for k := range points {
			j := k
			if reversed {
				j = points - 1 - k
			}
			if n > 0 && k == 0 {
				continue
			}
			flat = append(flat, arc[2*j], arc[2*j+1])
		}
	}
	return flat, nil
}

func (t *Topology) ring(arcs []int) ([]float64, error) {
	flat, err := t.line(arcs)
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return flat, nil
	}
	// Degenerate rings are padded with the first point to the four positions
	// a closed ring needs.
	for len(flat) < 8 {
		flat = append(flat, flat[0], flat[1])
	}
	return flat, nil
}

func (t *Topology) polygon(rings [][]int) (*geom.Polygon, error) {
	p := geom.NewPolygon(geom.XY)
	for _, arcs := range rings {
		flat, err := t.ring(arcs)
		if err != nil {
			return nil, err
		}
		if err := p.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrap(err, "polygon push")
		}
	}
	return p, nil
}
