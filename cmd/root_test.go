package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/join"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"render", "breaks", "export", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "choropleth", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"render", "attribute", ""},
		{"render", "out-dir", "out"},
		{"breaks", "all", "false"},
		{"breaks", "format", "table"},
		{"export", "out", ""},
		{"serve", "port", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			c, _, err := rootCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := c.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}

	out := exportCmd.Flags().Lookup("out")
	assert.Equal(t, []string{"true"}, out.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestResolveAttribute(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	attr, err := resolveAttribute("")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAttribute, attr)

	cfg.Classify.DefaultAttribute = "gdp"
	attr, err = resolveAttribute("")
	require.NoError(t, err)
	assert.Equal(t, model.GDP, attr)

	attr, err = resolveAttribute("Population")
	require.NoError(t, err)
	assert.Equal(t, model.Population, attr)

	_, err = resolveAttribute("rent")
	assert.ErrorIs(t, err, model.ErrUnknownAttribute)
}

func sampleBreaks() breaksReport {
	return breaksReport{
		Scales: []*classify.Scale{
			{Attribute: model.Population, K: 5, Breaks: []float64{1200, 250000.5}, ClusterSizes: []int{2, 3, 1}, Count: 6},
			{Attribute: model.GDP, K: 5},
		},
		Join: join.Report{Matched: 6, UnmatchedPolygons: []string{"Alpine"}, InvalidCells: 1},
	}
}

func TestWriteBreaks_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBreaks(&buf, "table", sampleBreaks()))

	out := buf.String()
	assert.Contains(t, out, "ATTRIBUTE")
	assert.Contains(t, out, "1,200 | 250,000.5")
	assert.Contains(t, out, "2,3,1")
	assert.Contains(t, out, "Join: 6 matched, 1 invalid cells")
	assert.Contains(t, out, "Unmatched polygons (1): Alpine")
	assert.NotContains(t, out, "Unmatched facts")
}

func TestWriteBreaks_Encoded(t *testing.T) {
	var js bytes.Buffer
	require.NoError(t, writeBreaks(&js, "json", sampleBreaks()))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Len(t, decoded["scales"], 2)

	var ym bytes.Buffer
	require.NoError(t, writeBreaks(&ym, "yaml", sampleBreaks()))
	var back breaksReport
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &back))
	assert.Equal(t, 6, back.Join.Matched)
	assert.Equal(t, []float64{1200, 250000.5}, back.Scales[0].Breaks)

	assert.Error(t, writeBreaks(&bytes.Buffer{}, "xml", sampleBreaks()))
}

func TestExportFeatures(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{-122, 37, -121, 37, -121, 38, -122, 37}, []int{8})
	a := model.NewPolygonRecord("Alameda", poly, map[string]any{"fips": "06001"})
	a.Set(model.Population, 1670000)
	b := model.NewPolygonRecord("Alpine", poly, nil)
	records := []*model.PolygonRecord{a, b}

	scale := classify.Build(records, model.Population, 5)
	fc := exportFeatures(records, scale, render.DefaultPalette())
	require.Len(t, fc.Features, 2)

	props := fc.Features[0].Properties
	assert.Equal(t, "Alameda", fc.Features[0].ID)
	assert.Equal(t, "06001", props["fips"])
	assert.Equal(t, 1670000.0, props[model.Population.String()])
	assert.Equal(t, 0, props["class"])

	props = fc.Features[1].Properties
	assert.Equal(t, classify.NoData, props["class"])
	assert.Equal(t, render.DefaultPalette().NoData, props["fill"])

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
