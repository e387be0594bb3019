// Package join merges fact rows into polygon records by key.
package join

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/model"
)

// Report summarizes a join. None of its counts are errors.
type Report struct {
	Matched           int      `json:"matched" yaml:"matched"`
	UnmatchedFacts    []string `json:"unmatched_facts" yaml:"unmatched_facts"`
	UnmatchedPolygons []string `json:"unmatched_polygons" yaml:"unmatched_polygons"`
	DuplicateFacts    []string `json:"duplicate_facts,omitempty" yaml:"duplicate_facts,omitempty"`
	InvalidCells      int      `json:"invalid_cells" yaml:"invalid_cells"`
}

// Join copies attrs from each fact row onto every record with an equal key.
// Keys are compared as opaque, case-sensitive strings. A cell that does not
// parse as a finite number leaves that attribute absent on the matched
// records. When several rows share a key the later row wins.
func Join(records []*model.PolygonRecord, facts []model.FactRow, attrs []model.AttributeName) Report {
	log := zap.L().With(zap.String("component", "join"))

	index := make(map[string][]*model.PolygonRecord, len(records))
	for _, r := range records {
		if r == nil || r.Key == "" {
			continue
		}
		index[r.Key] = append(index[r.Key], r)
	}

	var rep Report
	joined := make(map[string]bool, len(facts))
	for _, f := range facts {
		targets, ok := index[f.Key]
		if !ok {
			rep.UnmatchedFacts = append(rep.UnmatchedFacts, f.Key)
			continue
		}
		if joined[f.Key] {
			rep.DuplicateFacts = append(rep.DuplicateFacts, f.Key)
			log.Warn("duplicate fact key, later row wins", zap.String("key", f.Key))
		} else {
			rep.Matched += len(targets)
		}
		joined[f.Key] = true

		for _, attr := range attrs {
			v, ok := f.Value(attr)
			if !ok {
				if raw, present := f.Values[attr]; present && raw != "" {
					rep.InvalidCells++
					log.Debug("unparsable cell",
						zap.String("key", f.Key),
						zap.String("attribute", string(attr)),
						zap.String("raw", raw),
					)
				}
			}
			for _, r := range targets {
				if ok {
					r.Set(attr, v)
				} else {
					r.Clear(attr)
				}
			}
		}
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r == nil || r.Key == "" || joined[r.Key] || seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		rep.UnmatchedPolygons = append(rep.UnmatchedPolygons, r.Key)
	}
	sort.Strings(rep.UnmatchedFacts)
	sort.Strings(rep.UnmatchedPolygons)

	log.Info("join complete",
		zap.Int("matched", rep.Matched),
		zap.Int("unmatched_facts", len(rep.UnmatchedFacts)),
		zap.Int("unmatched_polygons", len(rep.UnmatchedPolygons)),
		zap.Int("invalid_cells", rep.InvalidCells),
	)
	return rep
}
