package main

import (
	"context"

	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/pipeline"
)

// loadDataset runs the initial load with the configured sources.
func loadDataset(ctx context.Context) (*pipeline.Dataset, error) {
	return pipeline.Load(ctx, cfg, pipeline.NewOpener(cfg.Fetch))
}

// resolveAttribute parses an --attribute flag, falling back to the configured default.
func resolveAttribute(flag string) (model.AttributeName, error) {
	if flag == "" {
		flag = cfg.Classify.DefaultAttribute
	}
	if flag == "" {
		return model.DefaultAttribute, nil
	}
	return model.ParseAttribute(flag)
}
