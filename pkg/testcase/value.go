package testcase

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is an absolute screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SwipePayload is the structured value of a swipe action.
type SwipePayload struct {
	StartX     int `json:"startX"`
	StartY     int `json:"startY"`
	EndX       int `json:"endX"`
	EndY       int `json:"endY"`
	DurationMs int `json:"duration"`
}

// DragPayload is the structured value of a drag-drop action.
type DragPayload struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// ValueString returns the value as a string. Numbers are formatted without
// a trailing fraction; structured values yield "".
func (a *TestAction) ValueString() string {
	switch v := a.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// ValueMillis interprets the value as a duration in milliseconds.
func (a *TestAction) ValueMillis() (int, error) {
	switch v := a.Value.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("missing duration")
	default:
		return 0, fmt.Errorf("invalid duration of type %T", a.Value)
	}
}

// ParsePoint parses "x,y" (spaces allowed) into a Point.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid coordinates %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid x in %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid y in %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// PointValue reads a Point from a map with x/y keys or from an "x,y" string.
func PointValue(v any) (Point, error) {
	switch val := v.(type) {
	case string:
		return ParsePoint(val)
	case map[string]any:
		x, okX := intField(val, "x")
		y, okY := intField(val, "y")
		if !okX || !okY {
			return Point{}, fmt.Errorf("point requires numeric x and y")
		}
		return Point{X: x, Y: y}, nil
	default:
		return Point{}, fmt.Errorf("invalid point of type %T", v)
	}
}

// SwipePayload decodes the action value as a swipe payload.
func (a *TestAction) SwipePayload() (SwipePayload, error) {
	m, ok := a.Value.(map[string]any)
	if !ok {
		return SwipePayload{}, fmt.Errorf("swipe value must be an object, got %T", a.Value)
	}
	var p SwipePayload
	okAll := true
	for key, dst := range map[string]*int{
		"startX": &p.StartX, "startY": &p.StartY, "endX": &p.EndX, "endY": &p.EndY,
	} {
		n, ok := intField(m, key)
		if !ok {
			okAll = false
			continue
		}
		*dst = n
	}
	if !okAll {
		return SwipePayload{}, fmt.Errorf("swipe value requires startX, startY, endX and endY")
	}
	if d, ok := intField(m, "duration"); ok {
		p.DurationMs = d
	}
	return p, nil
}

// DragPayload decodes the action value as a drag payload with from/to points.
func (a *TestAction) DragPayload() (DragPayload, error) {
	m, ok := a.Value.(map[string]any)
	if !ok {
		return DragPayload{}, fmt.Errorf("drag value must be an object, got %T", a.Value)
	}
	from, err := PointValue(m["from"])
	if err != nil {
		return DragPayload{}, fmt.Errorf("drag from: %w", err)
	}
	to, err := PointValue(m["to"])
	if err != nil {
		return DragPayload{}, fmt.Errorf("drag to: %w", err)
	}
	return DragPayload{From: from, To: to}, nil
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}
