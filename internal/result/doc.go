// Package result converts the regions of an annotation store to and from
// the result JSON consumed by labeling backends.
//
// Spatial values are stored as percentages of the natural image size, so a
// result stays valid when the image is served at another resolution:
//
//	{"id": "a1b2c3d4e5", "from_name": "label", "to_name": "image",
//	 "type": "rectanglelabels", "original_width": 800, "original_height": 600,
//	 "value": {"x": 10, "y": 20, "width": 25, "height": 5, "rotation": 0,
//	           "rectanglelabels": ["Car"]}}
//
// Relations are items of type "relation" with from_id and to_id.
package result
