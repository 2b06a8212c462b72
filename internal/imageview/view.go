package imageview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/clock"
	"github.com/ironsheep/image-annotator-mcp/internal/config"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
	"github.com/ironsheep/image-annotator-mcp/internal/interaction"
	"github.com/ironsheep/image-annotator-mcp/internal/labels"
	"github.com/ironsheep/image-annotator-mcp/internal/loop"
	"github.com/ironsheep/image-annotator-mcp/internal/selection"
	"github.com/ironsheep/image-annotator-mcp/internal/tools"
	"github.com/ironsheep/image-annotator-mcp/internal/viewport"
)

// Deps are optional collaborators of a View.
type Deps struct {
	// Clock schedules the deferred click, resize debounce and label
	// reloads. Nil uses the wall clock.
	Clock clock.Clock
	// Images is the decoded image cache. Nil creates one sized from the
	// config.
	Images *pix.ImageCache
	// Labels overrides the label file named in the config.
	Labels *labels.Set
	Logger *slog.Logger
}

// View is one image object: the loaded image or gallery, its annotation
// and every controller that edits it. All of its state lives on a private
// event loop; callers reach it through Do.
type View struct {
	cfg    config.Config
	logger *slog.Logger
	loop   *loop.Loop
	clk    clock.Clock

	Labels     *labels.State
	Annotation *annotation.Annotation
	Selection  *selection.Controller
	Tools      *tools.Manager
	Viewport   *viewport.Controller
	Dispatcher *interaction.Dispatcher
	Window     *interaction.Window
	Keymap     *interaction.Keymap

	images  *pix.ImageCache
	watcher *labels.Watcher

	items   []string
	current int
	img     image.Image
	info    *pix.ImageInfo
	ready   bool
	errs    []error
	loadGen uint64

	suggestions  bool
	labelHotkeys []string
}

// New builds a view from cfg. A nil cfg uses the defaults. When the config
// names a label file it is loaded, and watched if requested.
func New(cfg *config.Config, deps Deps) (*View, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	images := deps.Images
	if images == nil {
		images = pix.NewImageCache(cfg.Cache.Images)
	}

	set := deps.Labels
	if set == nil && cfg.Labels.File != "" {
		var err error
		if set, err = labels.LoadFile(cfg.Labels.File); err != nil {
			return nil, fmt.Errorf("imageview: %w", err)
		}
	}

	v := &View{
		cfg:    *cfg,
		logger: logger.With("component", "imageview"),
		loop:   loop.New(logger),
		clk:    clk,
		images: images,
		Labels: labels.NewState(set),
		Window: interaction.NewWindow(),
		Keymap: interaction.NewKeymap(),
	}
	post := v.post

	v.Annotation = annotation.New(v.Labels, logger)
	v.Annotation.History = annotation.NewHistory(v.Annotation.Store, cfg.History.Limit)
	v.Selection = selection.New(v.Annotation.Store, logger)
	v.Tools = tools.NewManager(cfg.ToolOptions(), logger)
	v.Viewport = viewport.NewController(cfg.ViewportOptions(), clk, post, logger)
	v.Dispatcher = interaction.New(cfg.InteractionOptions(), interaction.Deps{
		Annotation: v.Annotation,
		Selection:  v.Selection,
		Tools:      v.Tools,
		Viewport:   v.Viewport,
		Clock:      clk,
		Post:       post,
		Window:     v.Window,
		Hotkeys:    v.Keymap,
		View:       v.view,
		Logger:     logger,
	})

	err := v.Do(context.Background(), func() error {
		v.Viewport.ResizeNow(float64(cfg.Stage.Width), float64(cfg.Stage.Height))
		if err := v.Dispatcher.Mount(); err != nil {
			return err
		}
		v.bindLabelHotkeys()
		return nil
	})
	if err != nil {
		v.loop.Close()
		return nil, fmt.Errorf("imageview: %w", err)
	}

	if cfg.Labels.File != "" && cfg.Labels.Watch && deps.Labels == nil {
		w, err := labels.Watch(cfg.Labels.File, clk, post, logger, v.reloadLabels)
		if err != nil {
			v.logger.Warn("label file not watched", "error", err)
		} else {
			v.watcher = w
		}
	}
	return v, nil
}

func (v *View) post(fn func()) {
	if !v.loop.Post(fn) {
		v.logger.Debug("dropped callback after close")
	}
}

func (v *View) view() annotation.View {
	return annotation.View{Item: v.current, Suggestions: v.suggestions}
}

// Do runs fn on the view's event loop and waits for it. Everything on the
// View, including its exported controllers, must be touched only inside Do.
func (v *View) Do(ctx context.Context, fn func() error) error {
	return v.loop.Do(ctx, fn)
}

// Sync waits until every callback queued so far has run.
func (v *View) Sync(ctx context.Context) error {
	return v.loop.Do(ctx, func() error { return nil })
}

// Config returns the configuration the view was built with.
func (v *View) Config() config.Config { return v.cfg }

// Clock returns the view's clock.
func (v *View) Clock() clock.Clock { return v.clk }

// Image returns the decoded current image, or nil before it is ready.
func (v *View) Image() image.Image {
	if !v.ready {
		return nil
	}
	return v.img
}

// Info describes the current image, or nil before it is ready.
func (v *View) Info() *pix.ImageInfo {
	if !v.ready {
		return nil
	}
	return v.info
}

// Ready reports whether the current image has loaded.
func (v *View) Ready() bool { return v.ready }

// Current returns the gallery index shown.
func (v *View) Current() int { return v.current }

// Items returns the gallery image paths.
func (v *View) Items() []string { return append([]string(nil), v.items...) }

// Errors returns the accumulated load errors, oldest first.
func (v *View) Errors() []error { return append([]error(nil), v.errs...) }

// SuggestionLayer reports whether the suggestion layer is interactive.
func (v *View) SuggestionLayer() bool { return v.suggestions }

// ShowSuggestions switches the interactive layer between accepted regions
// and suggestions. The selection is cleared because it belongs to the
// other layer.
func (v *View) ShowSuggestions(on bool) {
	if v.suggestions == on {
		return
	}
	v.Selection.Clear()
	v.suggestions = on
}

// Close stops watching labels, tears down the canvas and stops the loop.
// It is safe to call more than once.
func (v *View) Close() error {
	var werr error
	if v.watcher != nil {
		werr = v.watcher.Close()
		v.watcher = nil
	}
	err := v.Do(context.Background(), func() error {
		v.Viewport.CancelResize()
		v.unbindLabelHotkeys()
		v.Dispatcher.Unmount()
		v.loadGen++
		v.Annotation.Destroy()
		return nil
	})
	if err != nil && !errors.Is(err, loop.ErrClosed) {
		werr = errors.Join(werr, err)
	}
	v.loop.Close()
	return werr
}
