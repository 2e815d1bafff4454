package canvas

import (
	"encoding/json"
	"math"
	"regexp"

	"github.com/eldtechnologies/pixelboard/internal/models"
)

// colorRegex matches #RRGGBB, case-insensitive.
var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// maxExactInt is the largest integer a JSON number decodes to without loss.
const maxExactInt = 1 << 53

type placePayload struct {
	X     json.RawMessage `json:"x"`
	Y     json.RawMessage `json:"y"`
	Color json.RawMessage `json:"color"`
}

// DecodePlace parses a {x, y, color} payload. Coordinates must be JSON numbers
// with integral values; strings, fractions and null are rejected as invalid
// coords. A color that is not a JSON string is left empty so that validation
// rejects it as an invalid color. Bounds are not checked here.
func DecodePlace(data []byte, actorID string) (models.PlaceRequest, error) {
	var p placePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.PlaceRequest{}, &RejectError{Reason: ReasonMalformed}
	}

	x, okX := parseCoord(p.X)
	y, okY := parseCoord(p.Y)
	if !okX || !okY {
		return models.PlaceRequest{}, &RejectError{Reason: ReasonInvalidCoords}
	}

	var color string
	if len(p.Color) > 0 {
		_ = json.Unmarshal(p.Color, &color)
	}

	return models.PlaceRequest{X: x, Y: y, Color: color, ActorID: actorID}, nil
}

func parseCoord(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, false
	}
	return int(f), true
}

// ValidColor reports whether color is #RRGGBB.
func ValidColor(color string) bool {
	return colorRegex.MatchString(color)
}
