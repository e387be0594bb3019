package geometry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/fetcher"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/topojson"
)

// Supported layer formats.
const (
	FormatTopoJSON  = "topojson"
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
	FormatZIP       = "zip"
)

// Load opens src, decodes it in the configured (or detected) format and
// returns the indexed layer. tempDir receives downloaded and extracted files
// for formats that need a local path.
func Load(ctx context.Context, opener *fetcher.Opener, layer string, src config.GeometrySource, tempDir string) (*Store, error) {
	log := zap.L().With(zap.String("component", "geometry"), zap.String("layer", layer))
	start := time.Now()

	format := detectFormat(src)
	var (
		records []*model.PolygonRecord
		err     error
	)

	switch format {
	case FormatShapefile, FormatZIP:
		records, err = loadShapefileSource(ctx, opener, src, filepath.Join(tempDir, layer))
	default:
		var data []byte
		data, err = readAll(ctx, opener, src.Location)
		if err != nil {
			break
		}
		if format == "" {
			format = sniffJSON(data)
		}
		switch format {
		case FormatTopoJSON:
			records, err = LoadTopoJSON(bytes.NewReader(data), src.Object, src.KeyProperty)
		case FormatGeoJSON:
			records, err = LoadGeoJSON(bytes.NewReader(data), src.KeyProperty)
		default:
			err = eris.Errorf("geometry: cannot determine format of %s", src.Location)
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: load layer %s", layer)
	}

	store := NewStore(layer, records)
	log.Debug("layer loaded",
		zap.String("location", src.Location),
		zap.String("format", format),
		zap.Int("records", store.Len()),
		zap.Int("keys", len(store.keys)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return store, nil
}

// LoadTopoJSON decodes the named object of a topology into records keyed by
// keyProperty.
func LoadTopoJSON(r io.Reader, object, keyProperty string) ([]*model.PolygonRecord, error) {
	topo, err := topojson.Decode(r)
	if err != nil {
		return nil, err
	}
	if object == "" {
		names := topo.ObjectNames()
		if len(names) != 1 {
			return nil, eris.Errorf("geometry: topology has %d objects %v, configure one", len(names), names)
		}
		object = names[0]
	}

	features, err := topo.Features(object)
	if err != nil {
		return nil, err
	}

	records := make([]*model.PolygonRecord, 0, len(features))
	for _, f := range features {
		records = append(records, model.NewPolygonRecord(keyOf(f.Properties, keyProperty), f.Geometry, f.Properties))
	}
	logMissingKeys(records, keyProperty)
	return records, nil
}

// LoadGeoJSON decodes a FeatureCollection into records keyed by keyProperty.
func LoadGeoJSON(r io.Reader, keyProperty string) ([]*model.PolygonRecord, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}

	records := make([]*model.PolygonRecord, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		records = append(records, model.NewPolygonRecord(keyOf(f.Properties, keyProperty), f.Geometry, f.Properties))
	}
	logMissingKeys(records, keyProperty)
	return records, nil
}

func loadShapefileSource(ctx context.Context, opener *fetcher.Opener, src config.GeometrySource, dir string) ([]*model.PolygonRecord, error) {
	path, err := opener.FetchToFile(ctx, src.Location, dir)
	if err != nil {
		return nil, err
	}

	if fetcher.Ext(path) == ".zip" {
		extracted, err := fetcher.ExtractZIP(path, filepath.Join(dir, "extracted"))
		if err != nil {
			return nil, err
		}
		shpPath, ok := fetcher.FindByExt(extracted, ".shp")
		if !ok {
			return nil, eris.Errorf("geometry: no .shp file in %s", src.Location)
		}
		path = shpPath
	}

	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "geometry: shapefile %s", path)
	}
	return LoadShapefile(path, src.KeyProperty)
}

func readAll(ctx context.Context, opener *fetcher.Opener, location string) ([]byte, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: read %s", location)
	}
	return data, nil
}

func detectFormat(src config.GeometrySource) string {
	switch src.Format {
	case FormatTopoJSON, FormatGeoJSON, FormatShapefile, FormatZIP:
		return src.Format
	case "shp":
		return FormatShapefile
	}
	switch fetcher.Ext(src.Location) {
	case ".topojson":
		return FormatTopoJSON
	case ".geojson":
		return FormatGeoJSON
	case ".shp":
		return FormatShapefile
	case ".zip":
		return FormatZIP
	}
	return ""
}

// sniffJSON tells TopoJSON from GeoJSON for ambiguous .json files.
func sniffJSON(data []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	switch head.Type {
	case "Topology":
		return FormatTopoJSON
	case "FeatureCollection":
		return FormatGeoJSON
	}
	return ""
}

// keyOf renders the key property as a string. Numeric keys keep their
// shortest decimal form; a missing or null property gives an empty key.
func keyOf(props map[string]any, keyProperty string) string {
	switch v := props[keyProperty].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func logMissingKeys(records []*model.PolygonRecord, keyProperty string) {
	var missing int
	for _, r := range records {
		if r.Key == "" {
			missing++
		}
	}
	if missing > 0 {
		zap.L().Debug("geometry: features without key property",
			zap.String("component", "geometry"),
			zap.String("key_property", keyProperty),
			zap.Int("count", missing),
		)
	}
}
