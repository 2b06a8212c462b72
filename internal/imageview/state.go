package imageview

import "github.com/ironsheep/image-annotator-mcp/internal/annotation"

// State is a point-in-time summary of a view, shaped for reporting.
type State struct {
	Ready  bool   `json:"ready"`
	Path   string `json:"path,omitempty"`
	Item   int    `json:"item"`
	Items  int    `json:"items"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Stage  Size   `json:"stage"`
	// Scale is screen pixels per image pixel; Zoom is relative to fit.
	Scale   float64 `json:"scale"`
	Zoom    float64 `json:"zoom"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`

	Tool          string   `json:"tool"`
	Drawing       bool     `json:"drawing"`
	PendingClick  bool     `json:"pending_click"`
	Gesture       string   `json:"gesture"`
	ViewportState string   `json:"viewport_state"`
	ResizePending bool     `json:"resize_pending"`
	RelationMode  bool     `json:"relation_mode"`
	Selected      []string `json:"selected"`
	Regions       int      `json:"regions"`
	Suggestions   int      `json:"suggestions"`
	Relations     int      `json:"relations"`
	Cursor        *Point   `json:"cursor,omitempty"`
	CanUndo       bool     `json:"can_undo"`
	CanRedo       bool     `json:"can_redo"`
	ActiveLabels  []string `json:"active_labels"`
	Errors        []string `json:"errors,omitempty"`
}

// Size is a width and height in screen pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is an image-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State summarizes the view. Call it inside Do.
func (v *View) State() State {
	vp := v.Viewport.Viewport()
	st := State{
		Ready:         v.ready,
		Item:          v.current,
		Items:         len(v.items),
		Stage:         Size{vp.StageWidth, vp.StageHeight},
		Scale:         vp.EffectiveScale(),
		Zoom:          vp.Scale,
		OffsetX:       vp.OffsetX,
		OffsetY:       vp.OffsetY,
		Tool:          string(v.Tools.Active()),
		Drawing:       v.Tools.Drawing(),
		PendingClick:  v.Dispatcher.Pending(),
		Gesture:       v.Dispatcher.Gesture(),
		ViewportState: v.Viewport.State().String(),
		ResizePending: v.Viewport.ResizePending(),
		RelationMode:  v.Dispatcher.RelationMode(),
		Selected:      v.Selection.IDs(),
		Relations:     len(v.Annotation.Relations()),
		CanUndo:       v.Annotation.History.CanUndo(),
		CanRedo:       v.Annotation.History.CanRedo(),
		ActiveLabels:  []string{},
	}
	if st.Selected == nil {
		st.Selected = []string{}
	}
	if v.current < len(v.items) {
		st.Path = v.items[v.current]
	}
	if v.info != nil && v.ready {
		st.Width, st.Height = v.info.Width, v.info.Height
	}
	for _, r := range v.Annotation.All() {
		if r.Item != v.current {
			continue
		}
		if r.Origin == annotation.OriginSuggestion {
			st.Suggestions++
		} else {
			st.Regions++
		}
	}
	if p, ok := v.Dispatcher.Cursor(); ok {
		st.Cursor = &Point{p.X, p.Y}
	}
	for _, s := range v.Labels.ActiveStates() {
		st.ActiveLabels = append(st.ActiveLabels, s.Values...)
	}
	for _, err := range v.errs {
		st.Errors = append(st.Errors, err.Error())
	}
	return st
}
