package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/pipeline"
)

var (
	renderAttribute string
	renderOutDir    string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render map.svg and chart.svg for one attribute",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		attr, err := resolveAttribute(renderAttribute)
		if err != nil {
			return err
		}

		ds, err := loadDataset(ctx)
		if err != nil {
			return err
		}
		session, err := pipeline.NewSession(ds, cfg)
		if err != nil {
			return err
		}
		if _, err := session.Controller.Select(ctx, attr); err != nil {
			return err
		}
		docs, _ := session.Painter.Documents()

		if err := os.MkdirAll(renderOutDir, 0o755); err != nil {
			return eris.Wrap(err, "render: create output dir")
		}
		files := map[string][]byte{"map.svg": docs.Map, "chart.svg": docs.Chart}
		for name, data := range files {
			path := filepath.Join(renderOutDir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return eris.Wrapf(err, "render: write %s", path)
			}
			zap.L().Info("wrote document",
				zap.String("path", path),
				zap.String("attribute", docs.Attribute.String()),
				zap.Int("bytes", len(data)),
			)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderAttribute, "attribute", "", "attribute name or slug (default from config)")
	renderCmd.Flags().StringVar(&renderOutDir, "out-dir", "out", "directory for map.svg and chart.svg")
	rootCmd.AddCommand(renderCmd)
}
