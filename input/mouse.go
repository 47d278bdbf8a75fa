// Package input synthesizes human-like mouse and keyboard CDP events: Bézier
// mouse paths with jitter, and keyboard timing with word-boundary pauses and
// occasional typo-and-correct sequences.
package input

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kuromi/browser-core/mux"
)

type point struct{ x, y float64 }

// Synthesizer dispatches Input domain events for one connection, tracking
// the last known cursor position per session so the next path starts where
// the previous one ended, and the set of keys
// currently held per session, from which the dispatched modifier mask is
// derived.
type Synthesizer struct {
	m *mux.Multiplexer

	mu       sync.Mutex
	rng      *rand.Rand
	lastPos  map[string]point
	heldKeys map[string]map[string]bool
	Timing   MouseTiming
	Keyboard KeyboardTiming
}

// MouseTiming controls pacing of the synthesized path and clicks.
type MouseTiming struct {
	// MinSteps/MaxSteps bound how many intermediate points a path gets,
	// scaled further by travel distance.
	MinSteps, MaxSteps int
	// StepDelay is the base pause between dispatched mouseMoved events.
	StepDelay time.Duration
	// JitterPixels is the max per-step positional noise added to interior
	// points of the ideal curve, simulating hand tremor.
	JitterPixels float64
	// PrePressMin/Max bound the settle pause between arriving at the
	// target and pressing the button.
	PrePressMin, PrePressMax time.Duration
	// HoldMin/Max bound how long the button stays down before release.
	HoldMin, HoldMax time.Duration
	// InterClickMin/Max bound the gap between presses of a multi-click.
	InterClickMin, InterClickMax time.Duration
}

// DefaultMouseTiming covers the jitter, easing, and speed ranges a
// recorded human trace falls into.
var DefaultMouseTiming = MouseTiming{
	MinSteps:      12,
	MaxSteps:      40,
	StepDelay:     8 * time.Millisecond,
	JitterPixels:  1.5,
	PrePressMin:   30 * time.Millisecond,
	PrePressMax:   80 * time.Millisecond,
	HoldMin:       50 * time.Millisecond,
	HoldMax:       120 * time.Millisecond,
	InterClickMin: 80 * time.Millisecond,
	InterClickMax: 150 * time.Millisecond,
}

// NewSynthesizer builds a Synthesizer with a seedable RNG, so a caller can
// reproduce a recorded session's exact motion for testing.
func NewSynthesizer(m *mux.Multiplexer, seed int64) *Synthesizer {
	return &Synthesizer{
		m:        m,
		rng:      rand.New(rand.NewSource(seed)),
		lastPos:  make(map[string]point),
		heldKeys: make(map[string]map[string]bool),
		Timing:   DefaultMouseTiming,
		Keyboard: DefaultKeyboardTiming,
	}
}

func (s *Synthesizer) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Synthesizer) posFor(sessionID string, toX, toY float64) point {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, ok := s.lastPos[sessionID]
	if !ok {
		// No recorded position: start from a small offset near the target
		// rather than (0,0), which would produce an unrealistically long,
		// perfectly diagonal opening move.
		from = point{x: toX - 80, y: toY - 40}
	}
	return from
}

func (s *Synthesizer) setPos(sessionID string, p point) {
	s.mu.Lock()
	s.lastPos[sessionID] = p
	s.mu.Unlock()
}

// MoveTo animates the cursor from its last known position to (x, y) along a
// cubic Bézier curve with two randomized control points and per-step
// jitter, easing the step spacing in and out.
func (s *Synthesizer) MoveTo(ctx context.Context, sessionID string, x, y float64) error {
	from := s.posFor(sessionID, x, y)
	to := point{x: x, y: y}
	path := s.bezierPath(from, to)

	for i, p := range path {
		if err := s.dispatchMouse(ctx, sessionID, "mouseMoved", p.x, p.y, "", 0); err != nil {
			return err
		}
		if i < len(path)-1 {
			select {
			case <-time.After(s.easedDelay(i, len(path))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	s.setPos(sessionID, to)
	return nil
}

// bezierPath builds a cubic Bézier from `from` to `to` with two control
// points offset perpendicular to the travel direction by a random fraction
// of the distance, then samples it at a step count scaled to distance, and
// adds small per-sample jitter.
func (s *Synthesizer) bezierPath(from, to point) []point {
	dx, dy := to.x-from.x, to.y-from.y
	dist := math.Hypot(dx, dy)

	steps := s.Timing.MinSteps + int(dist/20)
	if steps > s.Timing.MaxSteps {
		steps = s.Timing.MaxSteps
	}
	if steps < 2 {
		steps = 2
	}

	// Perpendicular unit vector, for bowing the control points off the
	// straight line between from and to.
	var px, py float64
	if dist > 0 {
		px, py = -dy/dist, dx/dist
	}
	bow1 := (s.randFloat()*2 - 1) * dist * 0.25
	bow2 := (s.randFloat()*2 - 1) * dist * 0.25

	c1 := point{
		x: from.x + dx*0.33 + px*bow1,
		y: from.y + dy*0.33 + py*bow1,
	}
	c2 := point{
		x: from.x + dx*0.66 + px*bow2,
		y: from.y + dy*0.66 + py*bow2,
	}

	// Jitter applies to interior samples only: the first point must equal
	// the caller's current cursor and the last must land exactly on target,
	// or a click would start or end a pixel or two off.
	path := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		bx, by := cubicBezier(from, c1, c2, to, t)
		if i > 0 && i < steps {
			bx += (s.randFloat()*2 - 1) * s.Timing.JitterPixels
			by += (s.randFloat()*2 - 1) * s.Timing.JitterPixels
		}
		path = append(path, point{x: bx, y: by})
	}
	path[0] = from
	path[len(path)-1] = to
	return path
}

func cubicBezier(p0, p1, p2, p3 point, t float64) (float64, float64) {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	x := a*p0.x + b*p1.x + c*p2.x + d*p3.x
	y := a*p0.y + b*p1.y + c*p2.y + d*p3.y
	return x, y
}

// easedDelay slows the step cadence near the start and end of the path
// (ease-in-out) to avoid the constant-velocity signature of a scripted
// move.
func (s *Synthesizer) easedDelay(i, total int) time.Duration {
	t := float64(i) / float64(total-1)
	// Slow-fast-slow: the factor is large near t=0 and t=1 and small at the
	// midpoint.
	factor := 0.4 + 1.2*math.Abs(math.Cos(t*math.Pi))
	return time.Duration(float64(s.Timing.StepDelay) * factor)
}

// uniform draws a duration in [min, max].
func (s *Synthesizer) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.randFloat()*float64(max-min))
}

func (s *Synthesizer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Click moves the cursor along a path to (x, y), then dispatches a single
// mousePressed/mouseReleased pair with the settle and hold delays applied.
func (s *Synthesizer) Click(ctx context.Context, sessionID string, x, y float64) error {
	return s.ClickCount(ctx, sessionID, x, y, 1)
}

// ClickCount dispatches a count-click (1, 2, or 3) at (x, y): a settle
// pause after the move, then count press/release pairs with a hold delay
// each and an inter-click gap between them. Each pair carries its ordinal
// as the CDP clickCount, the way a real double-click's second press does.
func (s *Synthesizer) ClickCount(ctx context.Context, sessionID string, x, y float64, count int) error {
	if count < 1 {
		count = 1
	}
	if count > 3 {
		count = 3
	}
	if err := s.MoveTo(ctx, sessionID, x, y); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.uniform(s.Timing.PrePressMin, s.Timing.PrePressMax)); err != nil {
		return err
	}
	for i := 1; i <= count; i++ {
		if i > 1 {
			if err := s.sleep(ctx, s.uniform(s.Timing.InterClickMin, s.Timing.InterClickMax)); err != nil {
				return err
			}
		}
		if err := s.dispatchMouse(ctx, sessionID, "mousePressed", x, y, "left", i); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.uniform(s.Timing.HoldMin, s.Timing.HoldMax)); err != nil {
			return err
		}
		if err := s.dispatchMouse(ctx, sessionID, "mouseReleased", x, y, "left", i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) dispatchMouse(ctx context.Context, sessionID, eventType string, x, y float64, button string, clickCount int) error {
	params := map[string]any{
		"type": eventType,
		"x":    x,
		"y":    y,
	}
	if button != "" {
		params["button"] = button
		params["clickCount"] = clickCount
	}
	b, _ := json.Marshal(params)
	_, err := s.m.Send(ctx, "Input.dispatchMouseEvent", rawJSON(b), sessionID)
	return err
}

type rawJSONBytes json.RawMessage

func (r rawJSONBytes) MarshalJSON() ([]byte, error) { return r, nil }

func rawJSON(b []byte) json.Marshaler { return rawJSONBytes(b) }
