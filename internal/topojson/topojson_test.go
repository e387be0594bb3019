package topojson

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const plainTopology = `{
  "type": "Topology",
  "arcs": [
    [[0,0],[1,0],[1,1]],
    [[1,1],[0,1],[0,0]],
    [[1,0],[2,0],[2,1],[1,1]]
  ],
  "objects": {
    "counties": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[0,1]], "properties": {"NAME_ALT": "Alameda"}},
        {"type": "Polygon", "arcs": [[2,-1]], "id": 6007, "properties": {"NAME_ALT": "Butte"}},
        {"type": null, "properties": {"NAME_ALT": "Nowhere"}}
      ]
    },
    "outline": {"type": "MultiPolygon", "arcs": [[[0,1]],[[2,-1]]]}
  }
}`

func mustDecode(t *testing.T, doc string) *Topology {
	t.Helper()
	topo, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	return topo
}

func TestFeatures_GeometryCollection(t *testing.T) {
	topo := mustDecode(t, plainTopology)
	assert.Equal(t, []string{"counties", "outline"}, topo.ObjectNames())

	features, err := topo.Features("counties")
	require.NoError(t, err)
	require.Len(t, features, 3)

	alameda := features[0]
	assert.Equal(t, "Alameda", alameda.Properties["NAME_ALT"])
	poly, ok := alameda.Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, poly.FlatCoords())

	butte := features[1]
	assert.Equal(t, float64(6007), butte.ID)
	poly, ok = butte.Geometry.(*geom.Polygon)
	require.True(t, ok)
	// arc 2 forward, then arc 0 reversed
	assert.Equal(t, []float64{1, 0, 2, 0, 2, 1, 1, 1, 1, 0, 0, 0}, poly.FlatCoords())

	assert.Nil(t, features[2].Geometry)
	assert.Equal(t, "Nowhere", features[2].Properties["NAME_ALT"])
}

func TestFeatures_SingleObject(t *testing.T) {
	topo := mustDecode(t, plainTopology)

	features, err := topo.Features("outline")
	require.NoError(t, err)
	require.Len(t, features, 1)

	mp, ok := features[0].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.NotNil(t, features[0].Properties)
}

func TestDecode_QuantizedArcs(t *testing.T) {
	doc := `{
	  "type": "Topology",
	  "transform": {"scale": [0.5, 0.25], "translate": [-120, 30]},
	  "arcs": [[[0,0],[2,0],[0,4]]],
	  "objects": {
	    "line":   {"type": "LineString", "arcs": [0]},
	    "back":   {"type": "LineString", "arcs": [-1]},
	    "cities": {"type": "MultiPoint", "coordinates": [[2,4],[4,8]]},
	    "capital": {"type": "Point", "coordinates": [2,4], "properties": {"name": "Sacramento"}}
	  }
	}`
	topo := mustDecode(t, doc)

	features, err := topo.Features("line")
	require.NoError(t, err)
	assert.Equal(t, []float64{-120, 30, -119, 30, -119, 31}, features[0].Geometry.FlatCoords())

	features, err = topo.Features("back")
	require.NoError(t, err)
	assert.Equal(t, []float64{-119, 31, -119, 30, -120, 30}, features[0].Geometry.FlatCoords())

	// points are quantized but not delta-encoded
	features, err = topo.Features("cities")
	require.NoError(t, err)
	assert.Equal(t, []float64{-119, 31, -118, 32}, features[0].Geometry.FlatCoords())

	features, err = topo.Features("capital")
	require.NoError(t, err)
	assert.Equal(t, []float64{-119, 31}, features[0].Geometry.FlatCoords())
	assert.Equal(t, "Sacramento", features[0].Properties["name"])
}

func TestFeatures_NestedCollectionAndLines(t *testing.T) {
	doc := `{
	  "type": "Topology",
	  "arcs": [[[0,0],[1,1]],[[1,1],[2,0]]],
	  "objects": {
	    "mixed": {"type": "GeometryCollection", "geometries": [
	      {"type": "GeometryCollection", "geometries": [
	        {"type": "MultiLineString", "arcs": [[0],[1]]},
	        {"type": "LineString", "arcs": [0,1]}
	      ]}
	    ]}
	  }
	}`
	topo := mustDecode(t, doc)

	features, err := topo.Features("mixed")
	require.NoError(t, err)
	require.Len(t, features, 1)

	gc, ok := features[0].Geometry.(*geom.GeometryCollection)
	require.True(t, ok)
	require.Equal(t, 2, gc.NumGeoms())

	mls, ok := gc.Geom(0).(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 2, mls.NumLineStrings())
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 0}, gc.Geom(1).FlatCoords())
}

func TestRing_DegenerateIsPadded(t *testing.T) {
	doc := `{"type":"Topology","arcs":[[[0,0],[1,0]]],
	  "objects":{"sliver":{"type":"Polygon","arcs":[[0]]}}}`
	topo := mustDecode(t, doc)

	features, err := topo.Features("sliver")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0, 0, 0, 0, 0}, features[0].Geometry.FlatCoords())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		object  string
		wantErr string
	}{
		{name: "not json", doc: `{`, wantErr: "topojson: decode"},
		{name: "wrong type", doc: `{"type":"FeatureCollection"}`, wantErr: "expected type Topology"},
		{name: "short position", doc: `{"type":"Topology","arcs":[[[1]]]}`, wantErr: "has 1 values"},
		{
			name:    "missing object",
			doc:     `{"type":"Topology","arcs":[],"objects":{"a":{"type":null}}}`,
			object:  "California_Counties",
			wantErr: `object "California_Counties" not found`,
		},
		{
			name:    "arc out of range",
			doc:     `{"type":"Topology","arcs":[],"objects":{"a":{"type":"LineString","arcs":[3]}}}`,
			object:  "a",
			wantErr: "arc index 3 out of range",
		},
		{
			name:    "unsupported type",
			doc:     `{"type":"Topology","arcs":[],"objects":{"a":{"type":"Sphere"}}}`,
			object:  "a",
			wantErr: `unsupported geometry type "Sphere"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := Decode(strings.NewReader(tt.doc))
			if tt.object == "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, err = topo.Features(tt.object)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
