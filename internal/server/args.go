package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// number reads a numeric argument. Clients send JSON numbers, but numeric
// strings are accepted too.
func number(req mcp.CallToolRequest, key string) (float64, bool, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, true, fmt.Errorf("%s: not a number: %q", key, x)
		}
	default:
		return 0, true, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%s: must be finite", key)
	}
	return f, true, nil
}

func requireNumber(req mcp.CallToolRequest, key string) (float64, error) {
	f, ok, err := number(req, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	return f, nil
}

func numberOr(req mcp.CallToolRequest, key string, def float64) (float64, error) {
	f, ok, err := number(req, key)
	if err != nil || !ok {
		return def, err
	}
	return f, nil
}

// stringList reads an array of strings. A single string is split on commas.
func stringList(req mcp.CallToolRequest, key string) ([]string, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		var out []string
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected a string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected an array of strings, got %T", key, v)
}

// points reads [[x, y], ...] or a flat [x1, y1, x2, y2, ...] array.
func points(req mcp.CallToolRequest, key string) ([]geom.Point, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected an array, got %T", key, v)
	}
	var flat []float64
	for i, e := range arr {
		switch x := e.(type) {
		case float64:
			flat = append(flat, x)
		case []any:
			if len(x) != 2 {
				return nil, fmt.Errorf("%s[%d]: expected [x, y]", key, i)
			}
			px, okx := x[0].(float64)
			py, oky := x[1].(float64)
			if !okx || !oky {
				return nil, fmt.Errorf("%s[%d]: coordinates must be numbers", key, i)
			}
			flat = append(flat, px, py)
		default:
			return nil, fmt.Errorf("%s[%d]: unexpected %T", key, i, e)
		}
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("%s: odd number of coordinates", key)
	}
	out := make([]geom.Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		out = append(out, geom.Pt(flat[i], flat[i+1]))
	}
	return out, nil
}

func modifiers(req mcp.CallToolRequest) (input.Modifiers, error) {
	return input.ParseModifiers(req.GetString("modifiers", ""))
}

func buttons(name string) (input.Buttons, error) {
	switch strings.ToLower(name) {
	case "", "left", "primary":
		return input.ButtonPrimary, nil
	case "middle":
		return input.ButtonMiddle, nil
	case "right", "secondary":
		return input.ButtonSecondary, nil
	}
	return 0, fmt.Errorf("unknown button %q", name)
}
