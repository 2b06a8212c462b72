package server

import (
	"context"
	"encoding/json"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/detection"
	"github.com/ironsheep/image-annotator-mcp/internal/imageview"
)

// call invokes a tool and fails the test on a protocol-level error.
func call(t *testing.T, s *testServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.Call(context.Background(), name, args)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	if res == nil {
		t.Fatalf("%s: nil result", name)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text
}

// mustCall invokes a tool, requires success and decodes the JSON result
// into out when out is non-nil.
func mustCall(t *testing.T, s *testServer, name string, args map[string]any, out any) {
	t.Helper()
	res := call(t, s, name, args)
	if res.IsError {
		t.Fatalf("%s failed: %s", name, resultText(t, res))
	}
	if out != nil {
		if err := json.Unmarshal([]byte(resultText(t, res)), out); err != nil {
			t.Fatalf("%s: failed to decode result: %v", name, err)
		}
	}
}

func wantError(t *testing.T, s *testServer, name string, args map[string]any, substr string) {
	t.Helper()
	res := call(t, s, name, args)
	if !res.IsError {
		t.Fatalf("%s: expected an error result, got %s", name, resultText(t, res))
	}
	if msg := resultText(t, res); !strings.Contains(msg, substr) {
		t.Errorf("%s: error %q does not mention %q", name, msg, substr)
	}
}

func loadImage(t *testing.T, s *testServer, w, h int) string {
	t.Helper()
	path := createTestImageFile(t, w, h, color.White)
	mustCall(t, s, "image_load", map[string]any{"path": path}, nil)
	return path
}

func state(t *testing.T, s *testServer) imageview.State {
	t.Helper()
	var st imageview.State
	mustCall(t, s, "view_state", nil, &st)
	return st
}

func createBox(t *testing.T, s *testServer, x, y, w, h float64, label string) RegionInfo {
	t.Helper()
	var r RegionInfo
	mustCall(t, s, "region_create", map[string]any{
		"type": "rectangle", "x": x, "y": y, "width": w, "height": h,
		"labels": []any{label},
	}, &r)
	return r
}

func TestHandleImageLoad(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var res struct {
		Path   string   `json:"path"`
		Width  int      `json:"width"`
		Height int      `json:"height"`
		Format string   `json:"format"`
		Items  []string `json:"items"`
	}
	mustCall(t, s, "image_load", map[string]any{"path": path}, &res)

	if res.Width != 100 || res.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", res.Width, res.Height)
	}
	if res.Format != "png" {
		t.Errorf("format: got %s, want png", res.Format)
	}
	if len(res.Items) != 1 || res.Items[0] != path {
		t.Errorf("items: got %v", res.Items)
	}
}

func TestHandleImageLoad_Gallery(t *testing.T) {
	s := newTestServer(t)
	a := createTestImageFile(t, 100, 80, color.White)
	b := createTestImageFile(t, 50, 40, color.Black)

	mustCall(t, s, "image_load", map[string]any{"paths": []any{a, b}}, nil)

	var res struct {
		Item  int `json:"item"`
		Width int `json:"width"`
	}
	mustCall(t, s, "image_load", map[string]any{"item": 1}, &res)
	if res.Item != 1 || res.Width != 50 {
		t.Errorf("after switching: item %d width %d, want 1 and 50", res.Item, res.Width)
	}
	wantError(t, s, "image_load", map[string]any{"item": 5}, "out of range")
}

func TestHandleImageLoad_Errors(t *testing.T) {
	s := newTestServer(t)
	wantError(t, s, "image_load", map[string]any{}, "required")
	wantError(t, s, "image_load", map[string]any{"path": "/nonexistent/image.png"}, "failed to load")
	wantError(t, s, "image_info", nil, "failed to load")
}

func TestHandleDrawRectangleWithPointer(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 800, 600)

	mustCall(t, s, "tool_select", map[string]any{"name": "rectangle"}, nil)
	mustCall(t, s, "labels_select", map[string]any{"value": "Car"}, nil)
	mustCall(t, s, "pointer_down", map[string]any{"x": 100, "y": 100}, nil)
	st := state(t, s)
	if !st.Drawing {
		t.Fatal("expected a draft after pointer_down")
	}
	mustCall(t, s, "pointer_move", map[string]any{"x": 200, "y": 180}, nil)
	mustCall(t, s, "pointer_up", map[string]any{"x": 200, "y": 180}, nil)

	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", nil, &list)
	if len(list.Regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(list.Regions))
	}
	r := list.Regions[0]
	if r.Kind != "rectangle" || r.Bounds == nil {
		t.Fatalf("unexpected region: %+v", r)
	}
	if r.Bounds.Left != 100 || r.Bounds.Top != 100 || r.Bounds.Right != 200 || r.Bounds.Bottom != 180 {
		t.Errorf("bounds: got %+v", *r.Bounds)
	}
	if len(r.Labels) != 1 || r.Labels[0] != "Car" {
		t.Errorf("labels: got %v, want [Car]", r.Labels)
	}
}

func TestHandleDeferredClickNeedsWait(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 800, 600)
	r := createBox(t, s, 10, 10, 40, 40, "Car")

	mustCall(t, s, "tool_select", map[string]any{"name": "rectangle"}, nil)
	mustCall(t, s, "region_select", map[string]any{"ids": []any{r.ID}}, nil)
	mustCall(t, s, "pointer_down", map[string]any{"x": 400, "y": 300}, nil)

	st := state(t, s)
	if !st.PendingClick {
		t.Fatal("expected a pending click")
	}
	if len(st.Selected) != 1 {
		t.Fatalf("selection cleared too early: %v", st.Selected)
	}

	var after imageview.State
	mustCall(t, s, "wait", map[string]any{"ms": 100}, &after)
	if after.PendingClick {
		t.Error("click still pending after the delay")
	}
	if len(after.Selected) != 0 {
		t.Errorf("selection not cleared: %v", after.Selected)
	}
}

func TestHandleViewZoomAndPan(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 800, 600)

	var st imageview.State
	mustCall(t, s, "view_zoom", map[string]any{"scale": 2}, &st)
	if st.Zoom != 2 {
		t.Errorf("zoom: got %g, want 2", st.Zoom)
	}
	mustCall(t, s, "view_zoom", map[string]any{"reset": true}, &st)
	if st.Zoom != 1 || st.OffsetX != 0 {
		t.Errorf("after reset: zoom %g offset %g", st.Zoom, st.OffsetX)
	}
	wantError(t, s, "view_zoom", map[string]any{}, "required")
	wantError(t, s, "view_zoom", map[string]any{"scale": -1}, "positive")

	mustCall(t, s, "view_zoom", map[string]any{"scale": 2, "x": 0, "y": 0}, nil)
	mustCall(t, s, "view_pan", map[string]any{"dx": -50, "dy": -40}, &st)
	if st.OffsetX != -50 || st.OffsetY != -40 {
		t.Errorf("offset: got (%g, %g), want (-50, -40)", st.OffsetX, st.OffsetY)
	}
}

func TestHandleViewResize(t *testing.T) {
	s := newTestServer(t)

	var st imageview.State
	mustCall(t, s, "view_resize", map[string]any{"width": 1024, "height": 768}, &st)
	if !st.ResizePending || st.Stage.Width != 800 {
		t.Fatalf("resize should be debounced: %+v", st.Stage)
	}
	mustCall(t, s, "wait", map[string]any{"ms": 1000}, &st)
	if st.ResizePending || st.Stage.Width != 1024 || st.Stage.Height != 768 {
		t.Errorf("after wait: pending %v stage %+v", st.ResizePending, st.Stage)
	}

	mustCall(t, s, "view_resize", map[string]any{"width": 640, "height": 480, "immediate": true}, &st)
	if st.Stage.Width != 640 {
		t.Errorf("immediate resize: stage %+v", st.Stage)
	}
	wantError(t, s, "view_resize", map[string]any{"width": 0, "height": 10}, "positive")
}

func TestHandleToolSelect(t *testing.T) {
	s := newTestServer(t)

	var st imageview.State
	mustCall(t, s, "tool_select", map[string]any{"name": "polygon"}, &st)
	if st.Tool != "PolygonTool" {
		t.Errorf("tool: got %s, want PolygonTool", st.Tool)
	}
	wantError(t, s, "tool_select", map[string]any{"name": "lasso"}, "unknown tool")
	wantError(t, s, "tool_select", map[string]any{}, "name")
}

func TestHandleKeyPress(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 200)
	r := createBox(t, s, 10, 10, 40, 40, "Car")
	mustCall(t, s, "region_select", map[string]any{"ids": []any{r.ID}}, nil)

	var st imageview.State
	mustCall(t, s, "key_press", map[string]any{"key": "2"}, &st)
	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", nil, &list)
	if got := list.Regions[0].Labels; len(got) != 1 || got[0] != "Person" {
		t.Errorf("label hotkey did not relabel the selection: %v", got)
	}

	mustCall(t, s, "key_press", map[string]any{"key": "Escape"}, &st)
	if len(st.Selected) != 0 {
		t.Errorf("escape did not clear the selection: %v", st.Selected)
	}
	wantError(t, s, "key_press", map[string]any{"key": "z", "modifiers": "hyper"}, "unknown modifier")
}

func TestHandleRegionCreate(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 200)

	tests := []struct {
		name string
		args map[string]any
		kind string
	}{
		{"rectangle", map[string]any{"type": "rectangle", "x": 10, "y": 10, "width": 30, "height": 20, "labels": []any{"Car"}}, "rectangle"},
		{"ellipse", map[string]any{"type": "ellipse", "x": 100, "y": 100, "rx": 20, "ry": 10, "labels": []any{"Car"}}, "ellipse"},
		{"polygon", map[string]any{"type": "polygon", "points": []any{[]any{10.0, 10.0}, []any{50.0, 10.0}, []any{30.0, 40.0}}, "labels": []any{"Person"}}, "polygon"},
		{"keypoint", map[string]any{"type": "keypoint", "x": 5, "y": 5, "labels": []any{"Person"}}, "keypoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RegionInfo
			mustCall(t, s, "region_create", tt.args, &r)
			if r.Kind != tt.kind || r.ID == "" {
				t.Errorf("got %+v", r)
			}
		})
	}

	wantError(t, s, "region_create", map[string]any{"type": "rectangle", "x": 1, "y": 1, "width": 5, "height": 5, "labels": []any{"Bus"}}, "Bus")
	wantError(t, s, "region_create", map[string]any{"type": "rectangle", "x": 1, "y": 1, "width": 5, "height": 5}, "no label")
	wantError(t, s, "region_create", map[string]any{"type": "rectangle", "x": 1}, "missing")
	wantError(t, s, "region_create", map[string]any{"type": "star"}, "unknown region type")
}

func TestHandleSelectionMoveAndUndo(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 200)
	a := createBox(t, s, 10, 10, 20, 20, "Car")
	b := createBox(t, s, 50, 40, 20, 20, "Car")
	mustCall(t, s, "region_select", map[string]any{"ids": []any{a.ID, b.ID}}, nil)

	var moved struct {
		Bounds struct{ Left, Top, Right, Bottom float64 } `json:"bounds"`
	}
	mustCall(t, s, "selection_move", map[string]any{"dx": 500, "dy": 5}, &moved)
	if moved.Bounds.Right != 200 {
		t.Errorf("group should stop at the image edge, right = %g", moved.Bounds.Right)
	}
	if moved.Bounds.Top != 15 {
		t.Errorf("top: got %g, want 15", moved.Bounds.Top)
	}

	mustCall(t, s, "history_undo", nil, nil)
	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", nil, &list)
	for _, r := range list.Regions {
		if r.ID == a.ID && r.Bounds.Left != 10 {
			t.Errorf("undo did not restore %s: %+v", a.ID, *r.Bounds)
		}
	}
	mustCall(t, s, "history_redo", nil, nil)
	wantError(t, s, "history_redo", nil, "nothing to redo")
}

func TestHandleSelectionMove_BeforeLoad(t *testing.T) {
	s := newTestServer(t)
	r := createBox(t, s, 10, 10, 40, 40, "Car")
	mustCall(t, s, "region_select", map[string]any{"ids": []any{r.ID}}, nil)

	wantError(t, s, "selection_move", map[string]any{"dx": 10}, "not loaded")

	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", nil, &list)
	if len(list.Regions) != 1 || list.Regions[0].Bounds.Left != 10 || list.Regions[0].Bounds.Top != 10 {
		t.Errorf("region moved without an image: %+v", list.Regions)
	}
}

func TestHandleRegionDelete(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 200)
	a := createBox(t, s, 10, 10, 20, 20, "Car")
	b := createBox(t, s, 50, 50, 20, 20, "Car")
	mustCall(t, s, "relation_add", map[string]any{"from": a.ID, "to": b.ID}, nil)

	var res struct {
		Removed []string `json:"removed"`
	}
	mustCall(t, s, "region_delete", map[string]any{"ids": []any{a.ID}}, &res)
	if len(res.Removed) != 1 || res.Removed[0] != a.ID {
		t.Errorf("removed: got %v", res.Removed)
	}
	var list struct {
		Regions   []RegionInfo `json:"regions"`
		Relations []any        `json:"relations"`
	}
	mustCall(t, s, "region_list", nil, &list)
	if len(list.Regions) != 1 || len(list.Relations) != 0 {
		t.Errorf("after delete: %d regions, %d relations", len(list.Regions), len(list.Relations))
	}
	wantError(t, s, "region_delete", map[string]any{"ids": []any{"missing"}}, "unknown region")
	wantError(t, s, "region_delete", nil, "nothing selected")
}

func TestHandleRelationAdd(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 200)
	a := createBox(t, s, 10, 10, 20, 20, "Car")
	b := createBox(t, s, 50, 50, 20, 20, "Person")

	var res struct {
		Relations []struct {
			From      string `json:"from"`
			To        string `json:"to"`
			Direction string `json:"direction"`
		} `json:"relations"`
	}
	mustCall(t, s, "relation_add", map[string]any{"from": a.ID, "to": b.ID, "direction": "bi"}, &res)
	if len(res.Relations) != 1 || res.Relations[0].Direction != "bi" {
		t.Errorf("relations: %+v", res.Relations)
	}
	wantError(t, s, "relation_add", map[string]any{"from": a.ID, "to": b.ID, "direction": "up"}, "unknown direction")
}

func TestHandleSuggestAndAccept(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 200, 200, color.White)
	mustCall(t, s, "image_load", map[string]any{"path": path}, nil)
	mustCall(t, s, "region_create", map[string]any{"type": "rectangle", "x": 0, "y": 0, "width": 5, "height": 5, "labels": []any{"Car"}}, nil)

	var sug struct {
		Suggestions []RegionInfo `json:"suggestions"`
	}
	mustCall(t, s, "suggest_regions", map[string]any{"sources": []any{"rectangle"}}, &sug)
	if len(sug.Suggestions) != 0 {
		t.Errorf("blank image produced %d suggestions", len(sug.Suggestions))
	}
	wantError(t, s, "suggest_regions", map[string]any{"sources": []any{"faces"}}, "unknown detector")

	// Seed suggestions directly; detection itself is covered by its package.
	var ids []string
	err := s.view.Do(context.Background(), func() error {
		var err error
		ids, err = s.view.AddSuggestions([]detection.Suggestion{
			{Geometry: annotation.Box{X: 20, Y: 20, Width: 40, Height: 30}, Score: 0.9, Source: detection.SourceRectangle},
			{Geometry: annotation.Box{X: 100, Y: 100, Width: 40, Height: 30}, Score: 0.6, Source: detection.SourceRectangle},
		})
		return err
	})
	if err != nil || len(ids) != 2 {
		t.Fatalf("AddSuggestions: %v %v", ids, err)
	}

	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", map[string]any{"suggestions": true}, &list)
	if len(list.Regions) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(list.Regions))
	}

	var acc struct {
		Accepted []string `json:"accepted"`
		Rejected int      `json:"rejected"`
	}
	mustCall(t, s, "suggestion_accept", map[string]any{"ids": []any{ids[0]}, "labels": []any{"Person"}, "reject": true}, &acc)
	if len(acc.Accepted) != 1 || acc.Rejected != 1 {
		t.Errorf("accepted %v, rejected %d", acc.Accepted, acc.Rejected)
	}
	mustCall(t, s, "region_list", nil, &list)
	if len(list.Regions) != 2 {
		t.Fatalf("got %d regions after accepting, want 2", len(list.Regions))
	}
	for _, r := range list.Regions {
		if r.ID == ids[0] && (r.Origin != "prediction" || r.Labels[0] != "Person") {
			t.Errorf("accepted suggestion: %+v", r)
		}
	}
	wantError(t, s, "suggestion_accept", nil, "required")
}

func TestHandleRegionTranscribe(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 100)
	r := createBox(t, s, 10, 10, 100, 30, "Car")

	var res struct {
		Text string `json:"text"`
	}
	mustCall(t, s, "region_transcribe", map[string]any{"id": r.ID}, &res)
	if res.Text != "STOP" {
		t.Errorf("text: got %q, want STOP", res.Text)
	}
	var list struct {
		Regions []RegionInfo `json:"regions"`
	}
	mustCall(t, s, "region_list", nil, &list)
	if list.Regions[0].Text != "STOP" {
		t.Errorf("region text not stored: %q", list.Regions[0].Text)
	}
	wantError(t, s, "region_transcribe", map[string]any{"id": "nope"}, "unknown region")
}

func TestHandleRegionCrop(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 200, 100)
	r := createBox(t, s, 10, 10, 50, 20, "Car")

	res := call(t, s, "region_crop", map[string]any{"id": r.ID, "pad": 2})
	if res.IsError {
		t.Fatalf("region_crop failed: %s", resultText(t, res))
	}
	var found bool
	for _, c := range res.Content {
		if img, ok := c.(mcp.ImageContent); ok {
			found = true
			if img.MIMEType != "image/png" {
				t.Errorf("mime type: got %s", img.MIMEType)
			}
		}
	}
	if !found {
		t.Error("region_crop returned no image content")
	}
	if !strings.Contains(resultText(t, res), "54x24") {
		t.Errorf("caption: %s", resultText(t, res))
	}
}

func TestHandleExportImport(t *testing.T) {
	s := newTestServer(t)
	path := loadImage(t, s, 200, 100)
	createBox(t, s, 10, 10, 50, 20, "Car")

	out := filepath.Join(t.TempDir(), "result.json")
	res := call(t, s, "annotation_export", map[string]any{"path": out})
	if res.IsError {
		t.Fatalf("export failed: %s", resultText(t, res))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	if string(data) != resultText(t, res) {
		t.Error("file and result differ")
	}

	other := newTestServer(t)
	mustCall(t, other, "image_load", map[string]any{"path": path}, nil)
	var imported struct {
		Regions int `json:"regions"`
	}
	mustCall(t, other, "annotation_import", map[string]any{"path": out}, &imported)
	if imported.Regions != 1 {
		t.Errorf("imported %d regions, want 1", imported.Regions)
	}
	wantError(t, other, "annotation_import", map[string]any{"json": "{"}, "malformed")
	wantError(t, other, "annotation_import", nil, "required")
}

func TestHandleCanvasSnapshot(t *testing.T) {
	s := newTestServer(t)
	wantError(t, s, "canvas_snapshot", nil, "not loaded")

	loadImage(t, s, 400, 200)
	createBox(t, s, 10, 10, 50, 20, "Car")
	res := call(t, s, "canvas_snapshot", map[string]any{"max_size": 200})
	if res.IsError {
		t.Fatalf("snapshot failed: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "200x100") {
		t.Errorf("caption: %s", resultText(t, res))
	}
}

func TestHandleWait_Bounds(t *testing.T) {
	s := newTestServer(t)
	wantError(t, s, "wait", map[string]any{"ms": -1}, "between")
	wantError(t, s, "wait", map[string]any{}, "ms")
}

func TestHandlePointer_ImageSpace(t *testing.T) {
	s := newTestServer(t)
	loadImage(t, s, 400, 300)

	var st imageview.State
	mustCall(t, s, "pointer_move", map[string]any{"x": 100, "y": 50, "space": "image"}, &st)
	if st.Cursor == nil || math.Abs(st.Cursor.X-100) > 1e-9 || math.Abs(st.Cursor.Y-50) > 1e-9 {
		t.Errorf("cursor: got %+v, want (100, 50)", st.Cursor)
	}
	wantError(t, s, "pointer_move", map[string]any{"x": 1, "y": 1, "space": "world"}, "coordinate space")
	wantError(t, s, "pointer_down", map[string]any{"x": 1, "y": 1, "button": "fourth"}, "unknown button")
}
