package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
)

var (
	exportAttribute string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the joined counties as classified GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		attr, err := resolveAttribute(exportAttribute)
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		records := ds.Counties.Records
		scale := classify.Build(records, attr, cfg.Classify.Classes)
		palette := render.OptionsFromConfig(cfg.Render).Palette

		data, err := exportFeatures(records, scale, palette).MarshalJSON()
		if err != nil {
			return eris.Wrap(err, "export: encode geojson")
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", exportOut)
		}
		zap.L().Info("exported counties",
			zap.String("path", exportOut),
			zap.String("attribute", attr.String()),
			zap.Int("features", len(records)),
		)
		return nil
	},
}

// exportFeatures builds one feature per record carrying its source
// properties, joined values, class and fill colour for scale.
func exportFeatures(records []*model.PolygonRecord, scale *classify.Scale, palette render.Palette) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(records))}
	classes := scale.Classes()
	for _, r := range records {
		props := make(map[string]any, len(r.Properties)+len(r.Attributes)+3)
		for k, v := range r.Properties {
			props[k] = v
		}
		for a, v := range r.Attributes {
			props[a.String()] = v
		}
		class := scale.ClassOf(r)
		props["key"] = r.Key
		props["class"] = class
		props["fill"] = palette.Color(class, classes)

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Key,
			Geometry:   r.Geometry,
			Properties: props,
		})
	}
	return fc
}

func init() {
	exportCmd.Flags().StringVar(&exportAttribute, "attribute", "", "attribute name or slug (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output GeoJSON path")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
