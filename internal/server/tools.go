package server

import "github.com/mark3labs/mcp-go/mcp"

// registerTools defines every tool and binds its handler.
func (s *Server) registerTools() {
	// Image
	s.addTool(mcp.NewTool("image_load",
		mcp.WithDescription("Load an image, or several as a gallery, onto the canvas. Clears the current annotation."),
		mcp.WithString("path", mcp.Description("Absolute path to the image file")),
		mcp.WithArray("paths", mcp.Description("Gallery image paths; the first one is shown"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("item", mcp.Description("Switch the gallery to this index instead of loading")),
	), s.handleImageLoad)

	s.addTool(mcp.NewTool("image_info",
		mcp.WithDescription("Get the dimensions, format and file size of the current image."),
	), s.handleImageInfo)

	// Viewport
	s.addTool(mcp.NewTool("view_state",
		mcp.WithDescription("Report the canvas state: zoom, pan, tool, gesture, selection and counts."),
	), s.handleViewState)

	s.addTool(mcp.NewTool("view_resize",
		mcp.WithDescription("Resize the stage. Resizes are debounced unless immediate is set."),
		mcp.WithNumber("width", mcp.Description("Stage width in screen pixels"), mcp.Required()),
		mcp.WithNumber("height", mcp.Description("Stage height in screen pixels"), mcp.Required()),
		mcp.WithBoolean("immediate", mcp.Description("Apply now instead of after the debounce delay")),
	), s.handleViewResize)

	s.addTool(mcp.NewTool("view_zoom",
		mcp.WithDescription("Zoom the view. Give scale (relative to fit), factor, a wheel delta, or reset."),
		mcp.WithNumber("scale", mcp.Description("Absolute zoom, 1 = fit to stage")),
		mcp.WithNumber("factor", mcp.Description("Multiply the current zoom")),
		mcp.WithNumber("delta", mcp.Description("Wheel delta; zooms only with ctrl or meta held")),
		mcp.WithString("modifiers", mcp.Description("Held modifiers for a wheel delta, e.g. \"ctrl\"")),
		mcp.WithNumber("x", mcp.Description("Focal X in screen pixels (default stage center)")),
		mcp.WithNumber("y", mcp.Description("Focal Y in screen pixels (default stage center)")),
		mcp.WithBoolean("reset", mcp.Description("Return to fit with no pan")),
	), s.handleViewZoom)

	s.addTool(mcp.NewTool("view_pan",
		mcp.WithDescription("Pan the view by a screen-pixel delta, or to an absolute offset."),
		mcp.WithNumber("dx", mcp.Description("Horizontal delta")),
		mcp.WithNumber("dy", mcp.Description("Vertical delta")),
		mcp.WithNumber("offset_x", mcp.Description("Absolute horizontal offset")),
		mcp.WithNumber("offset_y", mcp.Description("Absolute vertical offset")),
	), s.handleViewPan)

	// Input
	s.addTool(mcp.NewTool("tool_select",
		mcp.WithDescription("Activate a drawing tool: rectangle, rectangle3point, ellipse, polygon, keypoint, brush, eraser, pan or none. Append -dynamic for preview variants."),
		mcp.WithString("name", mcp.Description("Tool name or alias"), mcp.Required()),
	), s.handleToolSelect)

	pointer := func(name, desc string) mcp.Tool {
		return mcp.NewTool(name,
			mcp.WithDescription(desc),
			mcp.WithNumber("x", mcp.Description("X position"), mcp.Required()),
			mcp.WithNumber("y", mcp.Description("Y position"), mcp.Required()),
			mcp.WithString("space", mcp.Description("Coordinate space: screen (default) or image")),
			mcp.WithString("button", mcp.Description("left (default), middle or right")),
			mcp.WithString("modifiers", mcp.Description("Held modifiers, e.g. \"shift\" or \"ctrl+alt\"")),
			mcp.WithBoolean("outside", mcp.Description("The pointer is outside the canvas")),
		)
	}
	s.addTool(pointer("pointer_down", "Press a pointer button on the canvas."), s.handlePointer)
	s.addTool(pointer("pointer_move", "Move the pointer; drags while a button is held."), s.handlePointer)
	s.addTool(pointer("pointer_up", "Release the pointer button."), s.handlePointer)

	s.addTool(mcp.NewTool("key_press",
		mcp.WithDescription("Press a key, e.g. escape, enter, delete, z with ctrl, or a label hotkey."),
		mcp.WithString("key", mcp.Description("Key name"), mcp.Required()),
		mcp.WithString("modifiers", mcp.Description("Held modifiers")),
	), s.handleKeyPress)

	s.addTool(mcp.NewTool("wait",
		mcp.WithDescription("Let time pass so deferred clicks and debounced resizes fire."),
		mcp.WithNumber("ms", mcp.Description("Milliseconds to wait"), mcp.Required()),
	), s.handleWait)

	// Regions
	s.addTool(mcp.NewTool("region_create",
		mcp.WithDescription("Create a region from image-pixel geometry. Uses the active labels when none are given."),
		mcp.WithString("type", mcp.Description("rectangle, ellipse, polygon or keypoint"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Left (rectangle), center (ellipse) or position (keypoint)")),
		mcp.WithNumber("y", mcp.Description("Top (rectangle), center (ellipse) or position (keypoint)")),
		mcp.WithNumber("width", mcp.Description("Rectangle width, or keypoint display width")),
		mcp.WithNumber("height", mcp.Description("Rectangle height")),
		mcp.WithNumber("rx", mcp.Description("Ellipse horizontal radius")),
		mcp.WithNumber("ry", mcp.Description("Ellipse vertical radius")),
		mcp.WithNumber("rotation", mcp.Description("Rotation in degrees")),
		mcp.WithArray("points", mcp.Description("Polygon vertices as [[x, y], ...]")),
		mcp.WithArray("labels", mcp.Description("Label values"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("parent", mcp.Description("Parent region id")),
	), s.handleRegionCreate)

	s.addTool(mcp.NewTool("region_list",
		mcp.WithDescription("List the regions of the current image."),
		mcp.WithBoolean("suggestions", mcp.Description("List suggestions instead of accepted regions")),
		mcp.WithBoolean("all_items", mcp.Description("Include regions of every gallery item")),
	), s.handleRegionList)

	s.addTool(mcp.NewTool("region_delete",
		mcp.WithDescription("Delete regions by id, or the selection when no ids are given."),
		mcp.WithArray("ids", mcp.Description("Region ids"), mcp.Items(map[string]any{"type": "string"})),
	), s.handleRegionDelete)

	s.addTool(mcp.NewTool("region_select",
		mcp.WithDescription("Change the selection."),
		mcp.WithArray("ids", mcp.Description("Region ids"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("mode", mcp.Description("replace (default), add or toggle")),
		mcp.WithBoolean("clear", mcp.Description("Clear the selection")),
	), s.handleRegionSelect)

	s.addTool(mcp.NewTool("region_transcribe",
		mcp.WithDescription("Read the text inside a region with OCR and store it on the region."),
		mcp.WithString("id", mcp.Description("Region id"), mcp.Required()),
	), s.handleRegionTranscribe)

	s.addTool(mcp.NewTool("region_crop",
		mcp.WithDescription("Return the pixels of a region as a PNG image."),
		mcp.WithString("id", mcp.Description("Region id"), mcp.Required()),
		mcp.WithNumber("pad", mcp.Description("Context pixels around the region. Default 0")),
		mcp.WithNumber("scale", mcp.Description("Resize factor. Default 1")),
	), s.handleRegionCrop)

	s.addTool(mcp.NewTool("relation_add",
		mcp.WithDescription("Link two regions with a relation."),
		mcp.WithString("from", mcp.Description("Source region id"), mcp.Required()),
		mcp.WithString("to", mcp.Description("Target region id"), mcp.Required()),
		mcp.WithString("direction", mcp.Description("right (default), left or bi")),
		mcp.WithArray("labels", mcp.Description("Relation labels"), mcp.Items(map[string]any{"type": "string"})),
	), s.handleRelationAdd)

	s.addTool(mcp.NewTool("selection_move",
		mcp.WithDescription("Move or scale the selected regions as a group, kept inside the image."),
		mcp.WithNumber("dx", mcp.Description("Horizontal move in image pixels")),
		mcp.WithNumber("dy", mcp.Description("Vertical move in image pixels")),
		mcp.WithNumber("sx", mcp.Description("Horizontal scale factor")),
		mcp.WithNumber("sy", mcp.Description("Vertical scale factor")),
	), s.handleSelectionMove)

	// Labels and suggestions
	s.addTool(mcp.NewTool("labels_select",
		mcp.WithDescription("Toggle a label value; also relabels the selection. Without arguments, lists the labels."),
		mcp.WithString("control", mcp.Description("Control name (default: the control holding value)")),
		mcp.WithString("value", mcp.Description("Label value")),
		mcp.WithBoolean("clear", mcp.Description("Deselect every label")),
	), s.handleLabelsSelect)

	s.addTool(mcp.NewTool("suggest_regions",
		mcp.WithDescription("Detect rectangles, circles and text blocks and add them as suggestions."),
		mcp.WithArray("sources", mcp.Description("Detectors to run: rectangle, circle, text"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("min_area", mcp.Description("Smallest region area in pixels")),
		mcp.WithNumber("min_confidence", mcp.Description("Lowest score to keep, 0-1")),
		mcp.WithNumber("limit", mcp.Description("Most suggestions to keep")),
	), s.handleSuggestRegions)

	s.addTool(mcp.NewTool("suggestion_accept",
		mcp.WithDescription("Accept suggestions as regions, or reject the rest."),
		mcp.WithArray("ids", mcp.Description("Suggestion ids"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("all", mcp.Description("Accept every suggestion")),
		mcp.WithBoolean("reject", mcp.Description("Reject the remaining suggestions")),
		mcp.WithArray("labels", mcp.Description("Label values (default: active labels)"), mcp.Items(map[string]any{"type": "string"})),
	), s.handleSuggestionAccept)

	// History and results
	s.addTool(mcp.NewTool("history_undo",
		mcp.WithDescription("Undo the last annotation change."),
	), s.handleHistoryUndo)
	s.addTool(mcp.NewTool("history_redo",
		mcp.WithDescription("Redo the last undone change."),
	), s.handleHistoryRedo)

	s.addTool(mcp.NewTool("annotation_export",
		mcp.WithDescription("Export regions and relations as a JSON result array."),
		mcp.WithString("path", mcp.Description("Also write the JSON to this file")),
	), s.handleAnnotationExport)

	s.addTool(mcp.NewTool("annotation_import",
		mcp.WithDescription("Replace the annotation with a JSON result array."),
		mcp.WithString("json", mcp.Description("Result JSON")),
		mcp.WithString("path", mcp.Description("File holding result JSON")),
	), s.handleAnnotationImport)

	s.addTool(mcp.NewTool("canvas_snapshot",
		mcp.WithDescription("Render the image with its regions as a PNG."),
		mcp.WithNumber("max_size", mcp.Description("Longest output edge in pixels")),
		mcp.WithNumber("grid", mcp.Description("Grid spacing in image pixels, 0 for none")),
		mcp.WithBoolean("show_labels", mcp.Description("Write label names on regions")),
	), s.handleCanvasSnapshot)
}
