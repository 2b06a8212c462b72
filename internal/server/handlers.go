package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
	"github.com/ironsheep/image-annotator-mcp/internal/tools"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// maxWait bounds a single wait call.
const maxWait = time.Minute

// === Image Handlers ===

// ImageResult describes the current image and gallery.
type ImageResult struct {
	*pix.ImageInfo
	Item  int      `json:"item"`
	Items []string `json:"items"`
}

func (s *Server) handleImageLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if item, ok, err := number(req, "item"); err != nil {
		return errorResult(err)
	} else if ok {
		if err := s.view.SetCurrentImage(ctx, int(item)); err != nil {
			return errorResult(err)
		}
		return s.handleImageInfo(ctx, req)
	}

	paths, err := stringList(req, "paths")
	if err != nil {
		return errorResult(err)
	}
	if p := req.GetString("path", ""); p != "" {
		paths = append([]string{p}, paths...)
	}
	if len(paths) == 0 {
		return errorResult(errors.New("path or paths is required"))
	}
	if err := s.view.Load(ctx, paths...); err != nil {
		return errorResult(err)
	}
	return s.handleImageInfo(ctx, req)
}

func (s *Server) handleImageInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var res ImageResult
	err := s.view.Do(ctx, func() error {
		info := s.view.Info()
		if info == nil {
			if errs := s.view.Errors(); len(errs) > 0 {
				return errs[len(errs)-1]
			}
			return fmt.Errorf("no image loaded")
		}
		res = ImageResult{
			ImageInfo: info,
			Item:      s.view.Current(),
			Items:     s.view.Items(),
		}
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

// === Viewport Handlers ===

func (s *Server) handleViewState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withState(ctx, func() error { return nil })
}

func (s *Server) handleViewResize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := requireNumber(req, "width")
	if err != nil {
		return errorResult(err)
	}
	h, err := requireNumber(req, "height")
	if err != nil {
		return errorResult(err)
	}
	if w <= 0 || h <= 0 {
		return errorResult(fmt.Errorf("stage size must be positive, got %gx%g", w, h))
	}
	immediate := req.GetBool("immediate", false)
	return s.withState(ctx, func() error {
		if immediate {
			s.view.Viewport.ResizeNow(w, h)
		} else {
			s.view.Viewport.Resize(w, h)
		}
		return nil
	})
}

// focal returns the requested focal point in canvas pixels, defaulting to
// the stage center.
func (s *Server) focal(req mcp.CallToolRequest) (geom.Point, error) {
	vp := s.view.Viewport.Viewport()
	x, err := numberOr(req, "x", vp.StageWidth/2)
	if err != nil {
		return geom.Point{}, err
	}
	y, err := numberOr(req, "y", vp.StageHeight/2)
	if err != nil {
		return geom.Point{}, err
	}
	return viewport.ScreenToCanvas(geom.Pt(x, y), vp), nil
}

func (s *Server) handleViewZoom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mods, err := modifiers(req)
	if err != nil {
		return errorResult(err)
	}
	scale, hasScale, err := number(req, "scale")
	if err != nil {
		return errorResult(err)
	}
	factor, hasFactor, err := number(req, "factor")
	if err != nil {
		return errorResult(err)
	}
	delta, hasDelta, err := number(req, "delta")
	if err != nil {
		return errorResult(err)
	}
	reset := req.GetBool("reset", false)
	if !reset && !hasScale && !hasFactor && !hasDelta {
		return errorResult(errors.New("one of scale, factor, delta or reset is required"))
	}

	return s.withState(ctx, func() error {
		if reset {
			s.view.Viewport.Reset()
			return nil
		}
		p, err := s.focal(req)
		if err != nil {
			return err
		}
		switch {
		case hasScale:
			if scale <= 0 {
				return fmt.Errorf("scale must be positive, got %g", scale)
			}
			s.view.Viewport.ZoomTo(scale, p)
		case hasFactor:
			if factor <= 0 {
				return fmt.Errorf("factor must be positive, got %g", factor)
			}
			s.view.Viewport.ZoomBy(factor, p)
		default:
			screen := viewport.CanvasToScreen(p, s.view.Viewport.Viewport())
			if !s.view.Dispatcher.Wheel(delta, screen, mods) {
				s.logger.Debug("wheel ignored", "delta", delta, "modifiers", mods)
			}
		}
		return nil
	})
}

func (s *Server) handleViewPan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dx, err := numberOr(req, "dx", 0)
	if err != nil {
		return errorResult(err)
	}
	dy, err := numberOr(req, "dy", 0)
	if err != nil {
		return errorResult(err)
	}
	ox, hasX, err := number(req, "offset_x")
	if err != nil {
		return errorResult(err)
	}
	oy, hasY, err := number(req, "offset_y")
	if err != nil {
		return errorResult(err)
	}
	return s.withState(ctx, func() error {
		if hasX || hasY {
			vp := s.view.Viewport.Viewport()
			if !hasX {
				ox = vp.OffsetX
			}
			if !hasY {
				oy = vp.OffsetY
			}
			s.view.Viewport.SetOffset(ox, oy)
		}
		if dx != 0 || dy != 0 {
			s.view.Viewport.Pan(dx, dy)
		}
		return nil
	})
}

// === Input Handlers ===

func (s *Server) handleToolSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult(err)
	}
	n, err := tools.ParseName(name)
	if err != nil {
		return errorResult(err)
	}
	return s.withState(ctx, func() error { return s.view.Tools.Select(n) })
}

var pointerKinds = map[string]input.EventKind{
	"pointer_down": input.PointerDown,
	"pointer_move": input.PointerMove,
	"pointer_up":   input.PointerUp,
}

// handlePointer serves pointer_down, pointer_move and pointer_up. Moves
// carry the buttons pressed by the last pointer_down, so a down, moves and
// an up make a drag.
func (s *Server) handlePointer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, ok := pointerKinds[req.Params.Name]
	if !ok {
		return errorResult(fmt.Errorf("not a pointer tool: %s", req.Params.Name))
	}
	x, err := requireNumber(req, "x")
	if err != nil {
		return errorResult(err)
	}
	y, err := requireNumber(req, "y")
	if err != nil {
		return errorResult(err)
	}
	mods, err := modifiers(req)
	if err != nil {
		return errorResult(err)
	}
	button, err := buttons(req.GetString("button", ""))
	if err != nil {
		return errorResult(err)
	}
	space := strings.ToLower(req.GetString("space", "screen"))
	outside := req.GetBool("outside", false)

	return s.withState(ctx, func() error {
		p := geom.Pt(x, y)
		switch space {
		case "screen":
		case "image":
			var err error
			if p, err = viewport.ImageToScreen(p, s.view.Viewport.Viewport()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown coordinate space %q", space)
		}

		ev := input.PointerEvent{Kind: kind, Screen: p, Mods: mods, Outside: outside}
		switch kind {
		case input.PointerDown:
			s.pressed = button
			ev.Buttons = button
		case input.PointerMove:
			ev.Buttons = s.pressed
		case input.PointerUp:
			s.pressed = 0
		}
		s.view.Dispatcher.Handle(ev)
		return nil
	})
}

func (s *Server) handleKeyPress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return errorResult(err)
	}
	mods, err := modifiers(req)
	if err != nil {
		return errorResult(err)
	}
	ev := input.KeyEvent{Key: strings.ToLower(key), Mods: mods}
	return s.withState(ctx, func() error {
		s.view.Dispatcher.KeyDown(ev)
		return nil
	})
}

// advancer is a clock whose time is moved by hand.
type advancer interface {
	Advance(time.Duration)
}

func (s *Server) handleWait(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ms, err := requireNumber(req, "ms")
	if err != nil {
		return errorResult(err)
	}
	d := time.Duration(ms * float64(time.Millisecond))
	if d < 0 || d > maxWait {
		return errorResult(fmt.Errorf("ms must be between 0 and %d", maxWait.Milliseconds()))
	}

	if a, ok := s.clk.(advancer); ok {
		a.Advance(d)
	} else {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return errorResult(ctx.Err())
		}
	}
	if err := s.view.Sync(ctx); err != nil {
		return errorResult(err)
	}
	return s.handleViewState(ctx, req)
}
