package coords

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrScreenSize indicates a non-positive screen dimension
	ErrScreenSize = errors.New("screen size must be positive")
	// ErrNotFinite indicates a NaN or infinite coordinate input
	ErrNotFinite = errors.New("coordinates must be finite numbers")
	// ErrUnknownSpace indicates an unrecognized coordinate space name
	ErrUnknownSpace = errors.New("unknown coordinate space")
)

// Space identifies how a raw tap coordinate is expressed
type Space string

const (
	// SpaceAuto resolves to ratio only when both values lie in [0,1]
	SpaceAuto Space = "auto"
	// SpacePixel treats inputs as absolute device pixels
	SpacePixel Space = "pixel"
	// SpaceRatio treats inputs as fractions of the screen dimensions
	SpaceRatio Space = "ratio"
)

// ParseSpace maps a user-supplied space name to a Space. An empty string
// means auto.
func ParseSpace(s string) (Space, error) {
	switch Space(s) {
	case SpaceAuto, "":
		return SpaceAuto, nil
	case SpacePixel:
		return SpacePixel, nil
	case SpaceRatio:
		return SpaceRatio, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpace, s)
}

// Size is a device screen geometry in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PointF is a raw floating-point coordinate pair
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is a device pixel coordinate pair
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Spec traces one coordinate resolution from raw input to the device pixel
// actually tapped. Computed holds the pre-clamp value so callers can detect
// truncation.
type Spec struct {
	Input          PointF `json:"input"`
	DeclaredSpace  Space  `json:"declared_space"`
	EffectiveSpace Space  `json:"effective_space"`
	ScreenSize     Size   `json:"screen_size"`
	Computed       Point  `json:"computed"`
	Tap            Point  `json:"tap"`
	Clamped        bool   `json:"clamped"`
}

// Resolve turns a raw (x, y) in the declared space into a clamped device
// pixel coordinate. Auto picks the ratio interpretation only when both
// values lie in the closed interval [0,1]; the decision covers the pair as
// a whole, never one axis at a time. Ratio values scale by the screen
// dimensions and round half away from zero.
func Resolve(x, y float64, declared Space, screen Size) (*Spec, error) {
	if screen.Width <= 0 || screen.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrScreenSize, screen.Width, screen.Height)
	}
	if !isFinite(x) || !isFinite(y) {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrNotFinite, x, y)
	}

	effective := declared
	if declared == SpaceAuto {
		if inUnitInterval(x) && inUnitInterval(y) {
			effective = SpaceRatio
		} else {
			effective = SpacePixel
		}
	}

	var computed Point
	switch effective {
	case SpaceRatio:
		computed = Point{X: roundToInt(x * float64(screen.Width)), Y: roundToInt(y * float64(screen.Height))}
	case SpacePixel:
		computed = Point{X: roundToInt(x), Y: roundToInt(y)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpace, declared)
	}

	tapX, clampedX := clampAxis(computed.X, screen.Width)
	tapY, clampedY := clampAxis(computed.Y, screen.Height)

	return &Spec{
		Input:          PointF{X: x, Y: y},
		DeclaredSpace:  declared,
		EffectiveSpace: effective,
		ScreenSize:     screen,
		Computed:       computed,
		Tap:            Point{X: tapX, Y: tapY},
		Clamped:        clampedX || clampedY,
	}, nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func roundToInt(v float64) int {
	return int(math.Round(v))
}

func clampAxis(v, dim int) (int, bool) {
	if v < 0 {
		return 0, true
	}
	if v > dim-1 {
		return dim - 1, true
	}
	return v, false
}
