// Package server implements the MCP (Model Context Protocol) server for the
// image annotation canvas.
//
// One Server owns one canvas: an image or gallery, its regions, the
// selection, the viewport and the active drawing tool. Clients drive it the
// way a person drives an annotation UI, with pointer and key events, or
// directly through region operations.
//
// # Protocol
//
// The server speaks MCP over stdio through github.com/mark3labs/mcp-go.
// Logs go to stderr; stdout carries only protocol messages.
//
// # Available Tools
//
// Image:
//   - image_load: Load an image or gallery, or switch gallery item
//   - image_info: Dimensions, format and size of the current image
//
// Viewport:
//   - view_state: Zoom, pan, tool, gesture, selection and counts
//   - view_resize: Resize the stage (debounced)
//   - view_zoom: Zoom to a scale, by a factor, by wheel delta, or reset
//   - view_pan: Pan by a delta or to an offset
//
// Input:
//   - tool_select: Activate a drawing tool
//   - pointer_down, pointer_move, pointer_up: Pointer events
//   - key_press: Key events, including label hotkeys
//   - wait: Let deferred clicks and debounced resizes fire
//
// Regions:
//   - region_create, region_list, region_delete, region_select
//   - region_transcribe: OCR the text inside a region
//   - region_crop: Region pixels as PNG
//   - relation_add: Link two regions
//   - selection_move: Move or scale the selection as a group
//
// Labels and suggestions:
//   - labels_select: Toggle labels; relabels the selection
//   - suggest_regions: Detect rectangles, circles and text blocks
//   - suggestion_accept: Accept or reject suggestions
//
// History and results:
//   - history_undo, history_redo
//   - annotation_export, annotation_import: JSON result arrays
//   - canvas_snapshot: The image with its regions drawn, as PNG
//
// # Error Handling
//
// Tool failures are reported as tool results with IsError set, so the
// client sees the message. Protocol errors are left to mcp-go.
//
// # Usage
//
//	srv, err := server.New(cfg, server.Deps{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run()
package server
