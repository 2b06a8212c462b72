package result

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// ErrMalformed is returned for result items that cannot be turned back into
// regions.
var ErrMalformed = errors.New("malformed result")

// TypeRelation is the result type of a relation item.
const TypeRelation = "relation"

// Item is one entry of a serialized annotation. Regions with several label
// controls produce one item per control, all sharing the region id.
type Item struct {
	ID             string                     `json:"id,omitempty"`
	FromName       string                     `json:"from_name,omitempty"`
	ToName         string                     `json:"to_name,omitempty"`
	Type           string                     `json:"type"`
	ParentID       string                     `json:"parentID,omitempty"`
	Origin         string                     `json:"origin,omitempty"`
	Score          *float64                   `json:"score,omitempty"`
	ReadOnly       bool                       `json:"readonly,omitempty"`
	Hidden         bool                       `json:"hidden,omitempty"`
	ItemIndex      *int                       `json:"item_index,omitempty"`
	OriginalWidth  int                        `json:"original_width,omitempty"`
	OriginalHeight int                        `json:"original_height,omitempty"`
	Value          map[string]json.RawMessage `json:"value,omitempty"`

	FromID    string   `json:"from_id,omitempty"`
	ToID      string   `json:"to_id,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// Options describe the image object the regions belong to.
type Options struct {
	// ToName is the name of the image object. Defaults to "image".
	ToName string
	// Width and Height are the natural image size used for percent
	// coordinates. Required when spatial regions are present.
	Width, Height float64
	// Gallery emits item_index on every region.
	Gallery bool
}

func (o Options) toName() string {
	if o.ToName == "" {
		return "image"
	}
	return o.ToName
}

func (o Options) viewport() viewport.Viewport {
	return viewport.Viewport{NaturalWidth: o.Width, NaturalHeight: o.Height}
}

// Export serializes every region and relation of store.
func Export(store *annotation.Store, opts Options) ([]Item, error) {
	var items []Item
	for _, r := range store.All() {
		value, err := encodeGeometry(r, opts)
		if err != nil {
			return nil, fmt.Errorf("export region %s: %w", r.ID, err)
		}
		base := Item{
			ID:       r.ID,
			ToName:   opts.toName(),
			Type:     string(r.Kind()),
			ParentID: r.ParentID,
			ReadOnly: r.ReadOnly,
			Hidden:   r.Hidden,
		}
		if r.Origin != "" && r.Origin != annotation.OriginManual {
			base.Origin = string(r.Origin)
		}
		if r.Score != 0 {
			score := r.Score
			base.Score = &score
		}
		if opts.Gallery {
			idx := r.Item
			base.ItemIndex = &idx
		}
		if r.Kind().Spatial() {
			base.OriginalWidth = int(opts.Width)
			base.OriginalHeight = int(opts.Height)
		}
		if r.Text != "" {
			value["transcription"] = mustRaw(r.Text)
		}

		if len(r.Labels) == 0 {
			base.Value = value
			items = append(items, base)
			continue
		}
		for _, st := range r.Labels {
			it := base
			it.FromName = st.From
			it.Type = st.Type
			it.Value = cloneValue(value)
			it.Value[st.Type] = mustRaw(st.Values)
			items = append(items, it)
		}
	}
	for _, rel := range store.Relations() {
		items = append(items, Item{
			Type:      TypeRelation,
			FromID:    rel.From,
			ToID:      rel.To,
			Direction: string(rel.Direction),
			Labels:    rel.Labels,
		})
	}
	return items, nil
}

// Marshal is Export encoded as a JSON array.
func Marshal(store *annotation.Store, opts Options) ([]byte, error) {
	items, err := Export(store, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return json.MarshalIndent(items, "", "  ")
}

func encodeGeometry(r *annotation.Region, opts Options) (map[string]json.RawMessage, error) {
	v := map[string]json.RawMessage{}
	vp := opts.viewport()
	pct := func(p geom.Point) (geom.Point, error) { return viewport.ImageToPercent(p, vp) }
	if r.Kind().Spatial() && (opts.Width <= 0 || opts.Height <= 0) {
		return nil, viewport.ErrNoNaturalSize
	}

	switch g := r.Geometry.(type) {
	case annotation.Box:
		p, err := pct(geom.Pt(g.X, g.Y))
		if err != nil {
			return nil, err
		}
		v["x"], v["y"] = mustRaw(p.X), mustRaw(p.Y)
		v["width"] = mustRaw(g.Width / opts.Width * 100)
		v["height"] = mustRaw(g.Height / opts.Height * 100)
		v["rotation"] = mustRaw(g.Rotation)
	case annotation.Ellipse:
		p, err := pct(geom.Pt(g.X, g.Y))
		if err != nil {
			return nil, err
		}
		v["x"], v["y"] = mustRaw(p.X), mustRaw(p.Y)
		v["radiusX"] = mustRaw(g.RadiusX / opts.Width * 100)
		v["radiusY"] = mustRaw(g.RadiusY / opts.Height * 100)
		v["rotation"] = mustRaw(g.Rotation)
	case annotation.Polygon:
		pts, err := percentPoints(g.Points, vp)
		if err != nil {
			return nil, err
		}
		v["points"] = mustRaw(pts)
		v["closed"] = mustRaw(g.Closed)
	case annotation.KeyPoint:
		p, err := pct(geom.Pt(g.X, g.Y))
		if err != nil {
			return nil, err
		}
		v["x"], v["y"] = mustRaw(p.X), mustRaw(p.Y)
		v["width"] = mustRaw(g.Width / opts.Width * 100)
	case annotation.Brush:
		strokes := make([]strokeValue, 0, len(g.Strokes))
		for _, s := range g.Strokes {
			pts, err := percentPoints(s.Points, vp)
			if err != nil {
				return nil, err
			}
			strokes = append(strokes, strokeValue{Points: pts, Size: s.Size / opts.Width * 100, Erase: s.Erase})
		}
		v["format"] = mustRaw("strokes")
		v["strokes"] = mustRaw(strokes)
	case annotation.TextSpan:
		v["start"], v["end"] = mustRaw(g.Start), mustRaw(g.End)
		v["text"] = mustRaw(g.Text)
	case annotation.AudioSpan:
		v["start"], v["end"] = mustRaw(g.Start), mustRaw(g.End)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry %T", ErrMalformed, r.Geometry)
	}
	return v, nil
}

type strokeValue struct {
	Points [][2]float64 `json:"points"`
	Size   float64      `json:"size"`
	Erase  bool         `json:"erase,omitempty"`
}

func percentPoints(pts []geom.Point, vp viewport.Viewport) ([][2]float64, error) {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		q, err := viewport.ImageToPercent(p, vp)
		if err != nil {
			return nil, err
		}
		out[i] = [2]float64{q.X, q.Y}
	}
	return out, nil
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("result: marshal %T: %v", v, err))
	}
	return b
}

func cloneValue(v map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(v)+1)
	for k, raw := range v {
		out[k] = raw
	}
	return out
}
