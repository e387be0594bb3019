// Package pipeline performs the initial load: the fact table and the
// geometry layers are fetched concurrently, and nothing is joined until all
// of them have arrived.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/facts"
	"github.com/sells-group/choropleth/internal/fetcher"
	"github.com/sells-group/choropleth/internal/geometry"
	"github.com/sells-group/choropleth/internal/join"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
	"github.com/sells-group/choropleth/internal/selection"
)

// Layer names.
const (
	LayerCounties    = "counties"
	LayerSurrounding = "surrounding"
)

// Dataset is the joined state every surface works from.
type Dataset struct {
	Counties    *geometry.Store
	Surrounding *geometry.Store
	Facts       []model.FactRow
	Report      join.Report
}

// NewOpener builds the source opener from the fetch settings.
func NewOpener(cfg config.FetchConfig) *fetcher.Opener {
	return fetcher.NewOpener(fetcher.HTTPOptions{
		UserAgent:  cfg.UserAgent,
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetries: cfg.MaxRetries,
		RatePerSec: cfg.RatePerSec,
	}, fetcher.FTPOptions{
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
	})
}

// Load fetches every source concurrently and joins the facts onto the
// counties once all have succeeded. Any failure fails the whole load.
func Load(ctx context.Context, cfg *config.Config, opener *fetcher.Opener) (*Dataset, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	start := time.Now()

	var ds Dataset
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := facts.Load(gctx, opener, cfg.Data.Facts)
		if err != nil {
			return err
		}
		ds.Facts = rows
		return nil
	})
	g.Go(func() error {
		store, err := geometry.Load(gctx, opener, LayerCounties, cfg.Data.Counties, cfg.Data.TempDir)
		if err != nil {
			return err
		}
		ds.Counties = store
		return nil
	})
	g.Go(func() error {
		if cfg.Data.Surrounding.Location == "" {
			ds.Surrounding = geometry.NewStore(LayerSurrounding, nil)
			return nil
		}
		store, err := geometry.Load(gctx, opener, LayerSurrounding, cfg.Data.Surrounding, cfg.Data.TempDir)
		if err != nil {
			return err
		}
		ds.Surrounding = store
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("initial load failed", zap.Error(err))
		return nil, eris.Wrap(err, "pipeline: load")
	}

	ds.Report = join.Join(ds.Counties.Records, ds.Facts, model.Attributes())

	log.Info("initial load complete",
		zap.Int("facts", len(ds.Facts)),
		zap.Int("counties", ds.Counties.Len()),
		zap.Int("surrounding", ds.Surrounding.Len()),
		zap.Int("matched", ds.Report.Matched),
		zap.Int("unmatched_facts", len(ds.Report.UnmatchedFacts)),
		zap.Int("unmatched_polygons", len(ds.Report.UnmatchedPolygons)),
		zap.Int("invalid_cells", ds.Report.InvalidCells),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &ds, nil
}

// Extent is the combined lon/lat extent of both layers, or nil when neither
// has geometry.
func (d *Dataset) Extent() *geom.Bounds {
	b := d.Counties.Bounds()
	s := d.Surrounding.Bounds()
	switch {
	case b == nil:
		return s
	case s == nil:
		return b
	}
	corners := geom.NewMultiPointFlat(geom.XY, []float64{s.Min(0), s.Min(1), s.Max(0), s.Max(1)})
	return b.Extend(corners)
}

// Session is a dataset wired to an SVG painter and a selection controller.
type Session struct {
	Data       *Dataset
	Painter    *render.SVGPainter
	Controller *selection.Controller
	Options    render.Options
}

// NewSession prepares the painter and controller for ds. The controller
// starts on the configured default attribute but nothing is painted yet.
func NewSession(ds *Dataset, cfg *config.Config) (*Session, error) {
	initial := model.DefaultAttribute
	if cfg.Classify.DefaultAttribute != "" {
		attr, err := model.ParseAttribute(cfg.Classify.DefaultAttribute)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: classify.default_attribute")
		}
		initial = attr
	}

	opts := render.OptionsFromConfig(cfg.Render)
	opts.SurroundingKey = cfg.Data.Surrounding.KeyProperty
	painter, err := render.NewSVGPainter(opts, ds.Surrounding.Records, ds.Extent())
	if err != nil {
		return nil, err
	}

	ctrl, err := selection.New(ds.Counties.Records, cfg.Classify.Classes, painter, initial)
	if err != nil {
		return nil, err
	}
	return &Session{Data: ds, Painter: painter, Controller: ctrl, Options: opts}, nil
}

// NewPainter returns a painter independent of the controller's, for
// rendering attributes without changing the selection.
func (s *Session) NewPainter() (*render.SVGPainter, error) {
	return render.NewSVGPainter(s.Options, s.Data.Surrounding.Records, s.Data.Extent())
}
