package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/detection"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/imageview"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
	"github.com/ironsheep/image-annotator-mcp/internal/labels"
	"github.com/ironsheep/image-annotator-mcp/internal/selection"
)

// RegionInfo is the reported form of a region. Bounds are image pixels.
type RegionInfo struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Bounds   *geom.BBox `json:"bounds,omitempty"`
	Labels   []string   `json:"labels"`
	Origin   string     `json:"origin"`
	Score    float64    `json:"score,omitempty"`
	Item     int        `json:"item"`
	ParentID string     `json:"parent_id,omitempty"`
	Selected bool       `json:"selected,omitempty"`
	Locked   bool       `json:"locked,omitempty"`
	ReadOnly bool       `json:"readonly,omitempty"`
	Hidden   bool       `json:"hidden,omitempty"`
	Text     string     `json:"text,omitempty"`
	Geometry any        `json:"geometry"`
}

func regionInfo(r *annotation.Region) RegionInfo {
	info := RegionInfo{
		ID:       r.ID,
		Kind:     string(r.Kind()),
		Labels:   r.LabelValues(),
		Origin:   string(r.Origin),
		Score:    r.Score,
		Item:     r.Item,
		ParentID: r.ParentID,
		Selected: r.Selected(),
		Locked:   r.Locked,
		ReadOnly: r.ReadOnly,
		Hidden:   r.Hidden,
		Text:     r.Text,
		Geometry: r.Geometry,
	}
	if info.Labels == nil {
		info.Labels = []string{}
	}
	if r.Kind().Spatial() {
		b := r.Bounds()
		info.Bounds = &b
	}
	return info
}

// labelStates resolves label values against the label set. Each value is
// looked up in control, or in every control when control is empty.
func labelStates(set *labels.Set, control string, values []string) ([]annotation.LabelState, error) {
	var out []annotation.LabelState
	index := map[string]int{}
	for _, v := range values {
		var owner *labels.Control
		for i := range set.Controls {
			c := &set.Controls[i]
			if control != "" && c.Name != control {
				continue
			}
			if _, ok := c.Label(v); ok {
				owner = c
				break
			}
		}
		if owner == nil {
			return nil, fmt.Errorf("label %q: %w", v, labels.ErrUnknownLabel)
		}
		if i, ok := index[owner.Name]; ok {
			out[i].Values = append(out[i].Values, v)
			continue
		}
		index[owner.Name] = len(out)
		out = append(out, annotation.LabelState{From: owner.Name, Type: owner.Type, Values: []string{v}})
	}
	return out, nil
}

// geometryFrom builds a geometry in image pixels from region_create
// arguments.
func geometryFrom(req mcp.CallToolRequest) (annotation.Geometry, error) {
	kind := strings.ToLower(req.GetString("type", ""))
	num := func(key string) (float64, error) { return requireNumber(req, key) }
	rotation, err := numberOr(req, "rotation", 0)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "rectangle", "box":
		var b annotation.Box
		for key, dst := range map[string]*float64{"x": &b.X, "y": &b.Y, "width": &b.Width, "height": &b.Height} {
			if *dst, err = num(key); err != nil {
				return nil, err
			}
		}
		b.Rotation = rotation
		return b, nil
	case "ellipse":
		var e annotation.Ellipse
		for key, dst := range map[string]*float64{"x": &e.X, "y": &e.Y, "rx": &e.RadiusX, "ry": &e.RadiusY} {
			if *dst, err = num(key); err != nil {
				return nil, err
			}
		}
		e.Rotation = rotation
		return e, nil
	case "polygon":
		pts, err := points(req, "points")
		if err != nil {
			return nil, err
		}
		return annotation.Polygon{Points: pts, Closed: true}, nil
	case "keypoint", "point":
		k := annotation.KeyPoint{Width: 5}
		if k.X, err = num("x"); err != nil {
			return nil, err
		}
		if k.Y, err = num("y"); err != nil {
			return nil, err
		}
		if k.Width, err = numberOr(req, "width", k.Width); err != nil {
			return nil, err
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown region type %q", kind)
}

func (s *Server) handleRegionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := geometryFrom(req)
	if err != nil {
		return errorResult(err)
	}
	values, err := stringList(req, "labels")
	if err != nil {
		return errorResult(err)
	}
	parent := req.GetString("parent", "")

	var info RegionInfo
	err = s.view.Do(ctx, func() error {
		if !s.view.Annotation.Editable() {
			return annotation.ErrNotEditable
		}
		states, err := labelStates(s.view.Labels.Set(), "", values)
		if err != nil {
			return err
		}
		opts := []annotation.CreateOption{annotation.WithItem(s.view.Current())}
		if parent != "" {
			opts = append(opts, annotation.WithParent(parent))
		}
		snap := s.view.Annotation.Snapshot()
		r, err := s.view.Annotation.Create(g, states, opts...)
		if err != nil {
			return err
		}
		s.view.Annotation.History.Push(snap)
		info = regionInfo(r)
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(info)
}

func (s *Server) handleRegionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	suggestions := req.GetBool("suggestions", false)
	allItems := req.GetBool("all_items", false)

	var out struct {
		Regions   []RegionInfo          `json:"regions"`
		Relations []annotation.Relation `json:"relations"`
	}
	out.Regions = []RegionInfo{}
	err := s.view.Do(ctx, func() error {
		for _, r := range s.view.Annotation.All() {
			if !allItems && r.Item != s.view.Current() {
				continue
			}
			if (r.Origin == annotation.OriginSuggestion) != suggestions {
				continue
			}
			out.Regions = append(out.Regions, regionInfo(r))
		}
		out.Relations = s.view.Annotation.Relations()
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

func (s *Server) handleRegionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := stringList(req, "ids")
	if err != nil {
		return errorResult(err)
	}
	var removed []string
	err = s.view.Do(ctx, func() error {
		if !s.view.Annotation.Editable() {
			return annotation.ErrNotEditable
		}
		if len(ids) == 0 {
			ids = s.view.Selection.IDs()
		}
		if len(ids) == 0 {
			return errors.New("no ids given and nothing selected")
		}
		for _, id := range ids {
			r := s.view.Annotation.Get(id)
			if r == nil {
				return fmt.Errorf("%w: %s", annotation.ErrUnknownRegion, id)
			}
			if r.ReadOnly {
				return fmt.Errorf("%w: %s is read-only", annotation.ErrNotEditable, id)
			}
		}
		snap := s.view.Annotation.Snapshot()
		for _, id := range ids {
			if s.view.Annotation.Remove(id) {
				removed = append(removed, id)
			}
		}
		if len(removed) > 0 {
			s.view.Annotation.History.Push(snap)
		}
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"removed": removed})
}

func (s *Server) handleRegionSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := stringList(req, "ids")
	if err != nil {
		return errorResult(err)
	}
	mode, err := selection.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return errorResult(err)
	}
	clearAll := req.GetBool("clear", false)
	return s.withState(ctx, func() error {
		if clearAll {
			s.view.Selection.Clear()
			return nil
		}
		for _, id := range ids {
			if s.view.Annotation.Get(id) == nil {
				return fmt.Errorf("%w: %s", annotation.ErrUnknownRegion, id)
			}
		}
		s.view.Selection.Select(ids, mode)
		return nil
	})
}

func (s *Server) handleRegionTranscribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errorResult(err)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Detection.Timeout))
	defer cancel()
	res, err := s.view.Transcribe(ctx, s.ocr, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) handleRegionCrop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return errorResult(err)
	}
	pad, err := numberOr(req, "pad", 0)
	if err != nil {
		return errorResult(err)
	}
	scale, err := numberOr(req, "scale", 1)
	if err != nil {
		return errorResult(err)
	}
	if pad < 0 || scale <= 0 {
		return errorResult(errors.New("pad must be >= 0 and scale > 0"))
	}
	crop, err := s.view.CropRegion(ctx, id, int(pad), scale)
	if err != nil {
		return errorResult(err)
	}
	return imageResult(fmt.Sprintf("region %s, %dx%d", id, crop.Width, crop.Height), crop), nil
}

func imageResult(caption string, img *pix.CropResult) *mcp.CallToolResult {
	return mcp.NewToolResultImage(caption, img.ImageBase64, img.MimeType)
}

func (s *Server) handleRelationAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return errorResult(err)
	}
	to, err := req.RequireString("to")
	if err != nil {
		return errorResult(err)
	}
	names, err := stringList(req, "labels")
	if err != nil {
		return errorResult(err)
	}
	dir := annotation.Direction(req.GetString("direction", string(annotation.DirectionRight)))
	switch dir {
	case annotation.DirectionRight, annotation.DirectionLeft, annotation.DirectionBi:
	default:
		return errorResult(fmt.Errorf("unknown direction %q", dir))
	}

	var rels []annotation.Relation
	err = s.view.Do(ctx, func() error {
		snap := s.view.Annotation.Snapshot()
		if err := s.view.Annotation.AddRelation(from, to, dir, names...); err != nil {
			return err
		}
		s.view.Annotation.History.Push(snap)
		rels = s.view.Annotation.RelationsOf(from)
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"relations": rels})
}

func (s *Server) handleSelectionMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dx, err := numberOr(req, "dx", 0)
	if err != nil {
		return errorResult(err)
	}
	dy, err := numberOr(req, "dy", 0)
	if err != nil {
		return errorResult(err)
	}
	sx, err := numberOr(req, "sx", 1)
	if err != nil {
		return errorResult(err)
	}
	sy, err := numberOr(req, "sy", 1)
	if err != nil {
		return errorResult(err)
	}

	var out struct {
		Moved   geom.Point   `json:"moved"`
		Bounds  *geom.BBox   `json:"bounds,omitempty"`
		Regions []RegionInfo `json:"regions"`
	}
	err = s.view.Do(ctx, func() error {
		if s.view.Selection.Len() == 0 {
			return errors.New("nothing selected")
		}
		vp := s.view.Viewport.Viewport()
		if vp.NaturalWidth <= 0 || vp.NaturalHeight <= 0 {
			return imageview.ErrNotReady
		}
		snap := s.view.Annotation.Snapshot()
		if sx != 1 || sy != 1 {
			if err := s.view.Selection.ScaleGroup(sx, sy); err != nil {
				s.view.Annotation.Restore(snap)
				return err
			}
		}
		if dx != 0 || dy != 0 {
			moved, err := s.view.Selection.TranslateGroup(dx, dy, vp.NaturalWidth, vp.NaturalHeight)
			if err != nil {
				s.view.Annotation.Restore(snap)
				return err
			}
			out.Moved = moved
		}
		s.view.Annotation.History.Push(snap)
		if b, ok := s.view.Selection.AggregateBBox(); ok {
			out.Bounds = &b
		}
		for _, r := range s.view.Selection.Selected() {
			out.Regions = append(out.Regions, regionInfo(r))
		}
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

// LabelsResult lists the label controls and their selected values.
type LabelsResult struct {
	Controls []ControlInfo `json:"controls"`
	On       *bool         `json:"on,omitempty"`
}

// ControlInfo is one label control.
type ControlInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Values   []string `json:"values"`
	Selected []string `json:"selected"`
}

func (s *Server) labelsResult() LabelsResult {
	var res LabelsResult
	for _, c := range s.view.Labels.Set().Controls {
		ci := ControlInfo{Name: c.Name, Type: c.Type, Selected: s.view.Labels.Selected(c.Name)}
		for _, l := range c.Labels {
			ci.Values = append(ci.Values, l.Value)
		}
		if ci.Selected == nil {
			ci.Selected = []string{}
		}
		res.Controls = append(res.Controls, ci)
	}
	return res
}

func (s *Server) handleLabelsSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	control := req.GetString("control", "")
	value := req.GetString("value", "")
	clearAll := req.GetBool("clear", false)

	var res LabelsResult
	err := s.view.Do(ctx, func() error {
		var toggled *bool
		switch {
		case clearAll:
			s.view.Labels.ClearSelection()
		case value != "":
			if control == "" {
				states, err := labelStates(s.view.Labels.Set(), "", []string{value})
				if err != nil {
					return err
				}
				control = states[0].From
			}
			on, err := s.view.SelectLabel(control, value)
			if err != nil {
				return err
			}
			toggled = &on
		}
		res = s.labelsResult()
		res.On = toggled
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) handleSuggestRegions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := s.cfg.DetectionOptions()
	sources, err := stringList(req, "sources")
	if err != nil {
		return errorResult(err)
	}
	for _, src := range sources {
		switch detection.Source(src) {
		case detection.SourceRectangle, detection.SourceCircle, detection.SourceText:
			opts.Sources = append(opts.Sources, detection.Source(src))
		default:
			return errorResult(fmt.Errorf("unknown detector %q", src))
		}
	}
	minArea, err := numberOr(req, "min_area", float64(opts.MinArea))
	if err != nil {
		return errorResult(err)
	}
	opts.MinArea = int(minArea)
	if opts.MinConfidence, err = numberOr(req, "min_confidence", opts.MinConfidence); err != nil {
		return errorResult(err)
	}
	limit, err := numberOr(req, "limit", float64(opts.Limit))
	if err != nil {
		return errorResult(err)
	}
	opts.Limit = int(limit)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Detection.Timeout))
	defer cancel()
	ids, err := s.view.Suggest(ctx, opts)
	if err != nil {
		return errorResult(err)
	}

	out := struct {
		Suggestions []RegionInfo `json:"suggestions"`
	}{Suggestions: []RegionInfo{}}
	err = s.view.Do(ctx, func() error {
		for _, id := range ids {
			if r := s.view.Annotation.Get(id); r != nil {
				out.Suggestions = append(out.Suggestions, regionInfo(r))
			}
		}
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

func (s *Server) handleSuggestionAccept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := stringList(req, "ids")
	if err != nil {
		return errorResult(err)
	}
	values, err := stringList(req, "labels")
	if err != nil {
		return errorResult(err)
	}
	all := req.GetBool("all", false)
	reject := req.GetBool("reject", false)
	if len(ids) == 0 && !all && !reject {
		return errorResult(errors.New("ids, all or reject is required"))
	}

	var out struct {
		Accepted []string `json:"accepted"`
		Rejected int      `json:"rejected"`
	}
	out.Accepted = []string{}
	err = s.view.Do(ctx, func() error {
		states, err := labelStates(s.view.Labels.Set(), "", values)
		if err != nil {
			return err
		}
		if all {
			ids = ids[:0]
			for _, r := range s.view.Suggestions() {
				ids = append(ids, r.ID)
			}
		}
		for _, id := range ids {
			if err := s.view.AcceptSuggestion(id, states); err != nil {
				return err
			}
			out.Accepted = append(out.Accepted, id)
		}
		if reject {
			out.Rejected = s.view.RejectSuggestions()
		}
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(out)
}

func (s *Server) handleHistoryUndo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withState(ctx, func() error {
		if !s.view.Annotation.History.Undo() {
			return errors.New("nothing to undo")
		}
		return nil
	})
}

func (s *Server) handleHistoryRedo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withState(ctx, func() error {
		if !s.view.Annotation.History.Redo() {
			return errors.New("nothing to redo")
		}
		return nil
	})
}

func (s *Server) handleAnnotationExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.view.Export(ctx)
	if err != nil {
		return errorResult(err)
	}
	if path := req.GetString("path", ""); path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errorResult(fmt.Errorf("write %s: %w", path, err))
		}
		s.logger.Info("annotation exported", "path", path, "bytes", len(data))
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleAnnotationImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data := []byte(req.GetString("json", ""))
	if path := req.GetString("path", ""); path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return errorResult(err)
		}
	}
	if len(data) == 0 {
		return errorResult(errors.New("json or path is required"))
	}
	n, err := s.view.Import(ctx, data)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]int{"regions": n})
}

func (s *Server) handleCanvasSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := s.cfg.RenderOptions()
	maxSize, err := numberOr(req, "max_size", float64(opts.MaxSize))
	if err != nil {
		return errorResult(err)
	}
	grid, err := numberOr(req, "grid", float64(opts.GridSize))
	if err != nil {
		return errorResult(err)
	}
	opts.MaxSize, opts.GridSize = int(maxSize), int(grid)
	opts.ShowLabels = req.GetBool("show_labels", opts.ShowLabels)

	img, err := s.view.Snapshot(ctx, opts)
	if err != nil {
		return errorResult(err)
	}
	enc, err := pix.EncodePNG(img)
	if err != nil {
		return errorResult(err)
	}
	return imageResult(fmt.Sprintf("canvas %dx%d", enc.Width, enc.Height), enc), nil
}
