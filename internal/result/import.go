package result

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// Unmarshal decodes a JSON array of items.
func Unmarshal(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return items, nil
}

// Import replaces the contents of store with items. Items sharing an id are
// merged into one region with several label states. Children may appear
// before their parents. On error the store is left as it was.
func Import(store *annotation.Store, items []Item, opts Options) error {
	regions, order, relations, err := decodeItems(items, opts)
	if err != nil {
		return err
	}

	before := store.Snapshot()
	fail := func(err error) error {
		store.Restore(before)
		return err
	}

	store.Clear()
	created := map[string]bool{}
	for len(created) < len(order) {
		progress := false
		for _, id := range order {
			pr := regions[id]
			if created[id] || (pr.parent != "" && !created[pr.parent]) {
				continue
			}
			if _, err := store.Create(pr.geometry, pr.labels, pr.options()...); err != nil {
				return fail(fmt.Errorf("import region %s: %w", id, err))
			}
			created[id] = true
			progress = true
		}
		if !progress {
			for _, id := range order {
				if !created[id] {
					return fail(fmt.Errorf("import region %s: %w: %s", id, annotation.ErrUnknownParent, regions[id].parent))
				}
			}
		}
	}
	for _, rel := range relations {
		if err := store.AddRelation(rel.FromID, rel.ToID, annotation.Direction(rel.Direction), rel.Labels...); err != nil {
			return fail(fmt.Errorf("import relation %s->%s: %w", rel.FromID, rel.ToID, err))
		}
	}
	return nil
}

type pendingRegion struct {
	id       string
	geometry annotation.Geometry
	labels   []annotation.LabelState
	parent   string
	origin   annotation.Origin
	score    float64
	item     int
	readOnly bool
	hidden   bool
	text     string
}

func (p *pendingRegion) options() []annotation.CreateOption {
	opts := []annotation.CreateOption{
		annotation.WithID(p.id),
		annotation.WithItem(p.item),
		annotation.WithOrigin(p.origin, p.score),
	}
	if p.parent != "" {
		opts = append(opts, annotation.WithParent(p.parent))
	}
	if p.readOnly {
		opts = append(opts, annotation.WithReadOnly())
	}
	if p.text != "" {
		opts = append(opts, annotation.WithText(p.text))
	}
	if p.hidden {
		opts = append(opts, annotation.WithHidden())
	}
	if len(p.labels) == 0 {
		opts = append(opts, annotation.WithoutLabels())
	}
	return opts
}

func decodeItems(items []Item, opts Options) (map[string]*pendingRegion, []string, []Item, error) {
	regions := map[string]*pendingRegion{}
	var order []string
	var relations []Item

	for i, it := range items {
		if it.Type == TypeRelation {
			if it.FromID == "" || it.ToID == "" {
				return nil, nil, nil, fmt.Errorf("%w: item %d: relation without ends", ErrMalformed, i)
			}
			relations = append(relations, it)
			continue
		}
		if it.ID == "" {
			return nil, nil, nil, fmt.Errorf("%w: item %d has no id", ErrMalformed, i)
		}
		g, err := decodeGeometry(it, opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("item %d (%s): %w", i, it.ID, err)
		}

		pr, seen := regions[it.ID]
		if !seen {
			pr = &pendingRegion{
				id:       it.ID,
				geometry: g,
				parent:   it.ParentID,
				origin:   annotation.Origin(it.Origin),
				readOnly: it.ReadOnly,
				hidden:   it.Hidden,
			}
			if pr.origin == "" {
				pr.origin = annotation.OriginManual
			}
			if it.Score != nil {
				pr.score = *it.Score
			}
			if it.ItemIndex != nil {
				pr.item = *it.ItemIndex
			}
			if raw, ok := it.Value["transcription"]; ok {
				if err := json.Unmarshal(raw, &pr.text); err != nil {
					return nil, nil, nil, fmt.Errorf("%w: item %d transcription: %w", ErrMalformed, i, err)
				}
			}
			regions[it.ID] = pr
			order = append(order, it.ID)
		} else if !annotation.SameGeometry(pr.geometry, g) {
			return nil, nil, nil, fmt.Errorf("%w: item %d: region %s has conflicting geometry", ErrMalformed, i, it.ID)
		}

		if raw, ok := it.Value[it.Type]; ok && it.FromName != "" {
			var values []string
			if err := json.Unmarshal(raw, &values); err != nil {
				return nil, nil, nil, fmt.Errorf("%w: item %d labels: %w", ErrMalformed, i, err)
			}
			pr.labels = append(pr.labels, annotation.LabelState{From: it.FromName, Type: it.Type, Values: values})
		}
	}
	return regions, order, relations, nil
}

// kindOf maps a result type such as "rectanglelabels" or "rectangle" to a
// geometry kind. Span types are told apart by their value.
func kindOf(it Item) (annotation.Kind, bool) {
	t := strings.TrimSuffix(it.Type, "labels")
	switch t {
	case "rectangle":
		return annotation.KindBox, true
	case "ellipse":
		return annotation.KindEllipse, true
	case "polygon":
		return annotation.KindPolygon, true
	case "keypoint":
		return annotation.KindKeyPoint, true
	case "brush":
		return annotation.KindBrush, true
	case "textspan", "audiospan", "", "hypertext", "paragraph":
		if _, ok := it.Value["text"]; ok {
			return annotation.KindTextSpan, true
		}
		if _, ok := it.Value["start"]; ok {
			return annotation.KindAudioSpan, true
		}
	}
	return "", false
}

func decodeGeometry(it Item, opts Options) (annotation.Geometry, error) {
	kind, ok := kindOf(it)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, it.Type)
	}
	if kind.Spatial() && (opts.Width <= 0 || opts.Height <= 0) {
		return nil, viewport.ErrNoNaturalSize
	}
	vp := opts.viewport()
	var v struct {
		X        float64       `json:"x"`
		Y        float64       `json:"y"`
		Width    float64       `json:"width"`
		Height   float64       `json:"height"`
		Rotation float64       `json:"rotation"`
		RadiusX  float64       `json:"radiusX"`
		RadiusY  float64       `json:"radiusY"`
		Points   [][2]float64  `json:"points"`
		Closed   *bool         `json:"closed"`
		Strokes  []strokeValue `json:"strokes"`
		Start    float64       `json:"start"`
		End      float64       `json:"end"`
		Text     string        `json:"text"`
	}
	raw, err := json.Marshal(it.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: value: %w", ErrMalformed, err)
	}
	img := func(x, y float64) geom.Point {
		p, _ := viewport.PercentToImage(geom.Pt(x, y), vp)
		return p
	}

	var g annotation.Geometry
	switch kind {
	case annotation.KindBox:
		p := img(v.X, v.Y)
		g = annotation.Box{X: p.X, Y: p.Y, Width: v.Width * opts.Width / 100, Height: v.Height * opts.Height / 100, Rotation: v.Rotation}
	case annotation.KindEllipse:
		p := img(v.X, v.Y)
		g = annotation.Ellipse{X: p.X, Y: p.Y, RadiusX: v.RadiusX * opts.Width / 100, RadiusY: v.RadiusY * opts.Height / 100, Rotation: v.Rotation}
	case annotation.KindPolygon:
		pts := make([]geom.Point, len(v.Points))
		for i, q := range v.Points {
			pts[i] = img(q[0], q[1])
		}
		g = annotation.Polygon{Points: pts, Closed: v.Closed == nil || *v.Closed}
	case annotation.KindKeyPoint:
		p := img(v.X, v.Y)
		g = annotation.KeyPoint{X: p.X, Y: p.Y, Width: v.Width * opts.Width / 100}
	case annotation.KindBrush:
		var b annotation.Brush
		for _, s := range v.Strokes {
			pts := make([]geom.Point, len(s.Points))
			for i, q := range s.Points {
				pts[i] = img(q[0], q[1])
			}
			b.Strokes = append(b.Strokes, annotation.Stroke{Points: pts, Size: s.Size * opts.Width / 100, Erase: s.Erase})
		}
		g = b.Rasterize()
	case annotation.KindTextSpan:
		if v.Start != math.Trunc(v.Start) || v.End != math.Trunc(v.End) {
			return nil, fmt.Errorf("%w: text offsets must be whole numbers, got %g-%g", ErrMalformed, v.Start, v.End)
		}
		g = annotation.TextSpan{Start: int(v.Start), End: int(v.End), Text: v.Text}
	case annotation.KindAudioSpan:
		g = annotation.AudioSpan{Start: v.Start, End: v.End}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
