// Package config loads the TOML settings file of the annotator server.
//
// Every key is optional; missing keys keep DefaultConfig values and
// out-of-range values are clamped by Validate. An example:
//
//	log_level = "debug"
//
//	[viewport]
//	max_scale = 20.0
//	clamp = "contain"
//
//	[interaction]
//	defer_deselect = "150ms"
//
//	[labels]
//	file = "labels.yaml"
package config
