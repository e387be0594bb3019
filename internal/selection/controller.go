// Package selection owns the expressed attribute. Every selection event
// reclassifies the joined records and repaints them; events arriving during a
// repaint are coalesced so only the latest one is painted.
package selection

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/metrics"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
)

// State is the controller's recompute state.
type State int

const (
	Idle State = iota
	Recomputing
)

func (s State) String() string {
	if s == Recomputing {
		return "recomputing"
	}
	return "idle"
}

// ErrUnknownAttribute rejects a selection of an attribute outside the known set.
var ErrUnknownAttribute = model.ErrUnknownAttribute

// Frame is the result of the latest completed recompute. Classes maps each
// keyed enumeration unit to its class, with classify.NoData for absent values.
type Frame struct {
	Revision  string              `json:"revision"`
	Attribute model.AttributeName `json:"attribute"`
	Scale     *classify.Scale     `json:"scale"`
	Classes   map[string]int      `json:"classes"`
	PaintedAt time.Time           `json:"painted_at"`
}

type request struct {
	attr model.AttributeName
	seq  uint64
}

// Controller serializes recomputes over one set of joined records.
type Controller struct {
	records []*model.PolygonRecord
	k       int
	painter render.Painter
	build   func([]*model.PolygonRecord, model.AttributeName, int) *classify.Scale

	mu        sync.Mutex
	state     State
	attr      model.AttributeName
	seq       uint64
	pending   *request
	completed uint64
	frame     *Frame
	lastErr   error
	done      chan struct{} // closed and replaced after every completed recompute
}

// New creates an idle controller expressing initial. Nothing is painted
// until the first Select or Refresh.
func New(records []*model.PolygonRecord, k int, painter render.Painter, initial model.AttributeName) (*Controller, error) {
	if painter == nil {
		return nil, eris.New("selection: painter is required")
	}
	if !initial.Valid() {
		return nil, eris.Wrapf(ErrUnknownAttribute, "selection: initial attribute %q", initial)
	}
	if k < 1 {
		k = 1
	}
	return &Controller{
		records: records,
		k:       k,
		painter: painter,
		build:   classify.Build,
		attr:    initial,
		done:    make(chan struct{}),
	}, nil
}

// Attribute returns the currently expressed attribute.
func (c *Controller) Attribute() model.AttributeName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attr
}

// Classes is the requested number of classes.
func (c *Controller) Classes() int { return c.k }

// State reports whether a recompute is running.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the latest completed frame, or false before the first paint.
func (c *Controller) Current() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return Frame{}, false
	}
	return *c.frame, true
}

// Refresh recomputes the current attribute.
func (c *Controller) Refresh(ctx context.Context) (Frame, error) {
	return c.Select(ctx, c.Attribute())
}

// Select expresses attr, then classifies and repaints. If a recompute is
// already running the event takes the single pending slot, replacing any
// older pending event, and Select returns once a frame at least as new as
// this event has been painted. The returned frame may therefore belong to a
// later event.
func (c *Controller) Select(ctx context.Context, attr model.AttributeName) (Frame, error) {
	if !attr.Valid() {
		return Frame{}, eris.Wrapf(ErrUnknownAttribute, "selection: %q", attr)
	}
	metrics.SelectionsTotal.Inc()

	c.mu.Lock()
	c.seq++
	req := request{attr: attr, seq: c.seq}

	if c.state == Recomputing {
		if c.pending != nil {
			metrics.CoalescedTotal.Inc()
			zap.L().Debug("selection superseded",
				zap.String("component", "selection"),
				zap.String("attribute", c.pending.attr.String()),
				zap.String("by", attr.String()),
			)
		}
		c.pending = &req
		return c.wait(ctx, req.seq)
	}

	c.state = Recomputing
	c.mu.Unlock()
	return c.run(req)
}

// wait blocks until the recompute covering seq completes. Called with c.mu
// held; returns with it released.
func (c *Controller) wait(ctx context.Context, seq uint64) (Frame, error) {
	for c.completed < seq {
		done := c.done
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return Frame{}, eris.Wrap(ctx.Err(), "selection: wait for repaint")
		case <-done:
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return Frame{}, c.lastErr
	}
	return *c.frame, nil
}

// run is the recompute loop. It holds the Recomputing state until no event
// is pending.
func (c *Controller) run(req request) (Frame, error) {
	log := zap.L().With(zap.String("component", "selection"))

	for {
		start := time.Now()

		c.mu.Lock()
		c.attr = req.attr
		c.mu.Unlock()

		scale := c.build(c.records, req.attr, c.k)

		// a newer event makes this classification moot; never paint it
		c.mu.Lock()
		if next := c.pending; next != nil {
			c.pending = nil
			c.mu.Unlock()
			metrics.CoalescedTotal.Inc()
			log.Debug("skipping superseded repaint",
				zap.String("attribute", req.attr.String()),
				zap.String("next", next.attr.String()),
			)
			req = *next
			continue
		}
		c.mu.Unlock()

		err := render.Paint(c.painter, c.records, scale)

		c.mu.Lock()
		if err != nil {
			c.lastErr = eris.Wrapf(err, "selection: repaint %s", req.attr)
			log.Error("repaint failed", zap.String("attribute", req.attr.String()), zap.Error(err))
		} else {
			c.lastErr = nil
			c.frame = &Frame{
				Revision:  uuid.NewString(),
				Attribute: req.attr,
				Scale:     scale,
				Classes:   scale.Assign(c.records),
				PaintedAt: time.Now(),
			}
			metrics.RecomputesTotal.WithLabelValues(req.attr.String()).Inc()
			metrics.RecomputeDurationMs.Observe(float64(time.Since(start).Milliseconds()))
			log.Info("recomputed",
				zap.String("attribute", req.attr.String()),
				zap.Int("classes", scale.Classes()),
				zap.Float64s("breaks", scale.Breaks),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
		c.completed = req.seq
		close(c.done)
		c.done = make(chan struct{})

		if next := c.pending; next != nil {
			c.pending = nil
			c.mu.Unlock()
			req = *next
			continue
		}

		c.state = Idle
		defer c.mu.Unlock()
		if c.lastErr != nil {
			return Frame{}, c.lastErr
		}
		return *c.frame, nil
	}
}
