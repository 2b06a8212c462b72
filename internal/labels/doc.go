// Package labels holds the label configuration an annotation is drawn with.
//
// A Set is read from YAML:
//
//	controls:
//	  - name: label
//	    type: rectanglelabels
//	    to_name: image
//	    choice: single
//	    labels:
//	      - value: Car
//	        color: "#ff6600"
//	        hotkey: "1"
//	      - value: Person
//
// State tracks the labels currently picked by the user and supplies them to
// the region store as annotation.LabelSource. Watcher reloads the file when
// it changes.
package labels
