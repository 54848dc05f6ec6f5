package interaction

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReentrantTransition is returned when a pointer action arrives while
	// a transition or range action is still running.
	ErrReentrantTransition = errors.New("interaction: transition already in progress")
	// ErrNoSelection is returned by Perform outside ModeRangeEnd.
	ErrNoSelection = errors.New("interaction: no completed range selection")
	// ErrUnknownAction is returned for actions outside the menu.
	ErrUnknownAction = errors.New("interaction: unknown range action")
)

// Mode is the cursor state of one view.
type Mode int

const (
	ModeNormal Mode = iota
	ModeLocked
	ModeRangeStart
	ModeRangeEnd
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeLocked:
		return "locked"
	case ModeRangeStart:
		return "range_start"
	case ModeRangeEnd:
		return "range_end"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Selection is a closed time range with Start <= End.
type Selection struct {
	Start time.Time
	End   time.Time
}

// NewSelection orders a and b.
func NewSelection(a, b time.Time) Selection {
	if b.Before(a) {
		a, b = b, a
	}
	return Selection{Start: a, End: b}
}

// Duration returns End-Start.
func (s Selection) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether t lies inside the selection.
func (s Selection) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// Action is an entry in the range menu.
type Action string

const (
	ActionExport     Action = "export"
	ActionSaveImage  Action = "save_image"
	ActionRangeStats Action = "range_stats"
)

// ParseAction validates a menu action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionExport, ActionSaveImage, ActionRangeStats:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// resetsAfter reports whether the cursor returns to normal once the action ran.
func (a Action) resetsAfter() bool {
	return a == ActionExport || a == ActionSaveImage
}

// Transition describes a completed mode change.
type Transition struct {
	From      Mode
	To        Mode
	At        time.Time
	Selection *Selection
}

// CursorMachine runs the pointer protocol for one view:
//
//	normal --secondary--> locked --secondary--> rangeStart --secondary--> rangeEnd --secondary--> normal
//
// A primary action or Cancel from any other mode returns to normal. While not
// normal the tooltip is frozen at the value displayed when the lock was taken.
type CursorMachine struct {
	mode      Mode
	lockedAt  time.Time
	start     time.Time
	selection *Selection

	live   Tooltip
	frozen Tooltip

	busy  bool
	hooks []func(Transition)
}

// NewCursorMachine returns a machine in ModeNormal.
func NewCursorMachine() *CursorMachine {
	return &CursorMachine{}
}

// OnTransition registers fn to run after every mode change. fn runs inside
// the transition: pointer actions it issues are rejected.
func (c *CursorMachine) OnTransition(fn func(Transition)) {
	c.hooks = append(c.hooks, fn)
}

// Mode returns the current mode.
func (c *CursorMachine) Mode() Mode {
	return c.mode
}

// LockedAt returns the time position captured when the cursor was locked.
func (c *CursorMachine) LockedAt() (time.Time, bool) {
	if c.mode == ModeNormal {
		return time.Time{}, false
	}
	return c.lockedAt, true
}

// Selection returns the completed selection, available in ModeRangeEnd.
func (c *CursorMachine) Selection() (Selection, bool) {
	if c.selection == nil {
		return Selection{}, false
	}
	return *c.selection, true
}

// Menu returns the range actions on offer, nil outside ModeRangeEnd.
func (c *CursorMachine) Menu() []Action {
	if c.mode != ModeRangeEnd {
		return nil
	}
	return []Action{ActionExport, ActionSaveImage, ActionRangeStats}
}

// Move records a freshly computed tooltip and returns what should be shown:
// the new tooltip in ModeNormal, the frozen one otherwise.
func (c *CursorMachine) Move(tip Tooltip) Tooltip {
	if c.mode == ModeNormal {
		c.live = tip
		return tip
	}
	return c.frozen
}

// Displayed returns the tooltip currently on screen.
func (c *CursorMachine) Displayed() Tooltip {
	if c.mode == ModeNormal {
		return c.live
	}
	return c.frozen
}

// Secondary advances the cycle. at is the pointer's time position.
func (c *CursorMachine) Secondary(at time.Time) error {
	if c.busy {
		return ErrReentrantTransition
	}
	switch c.mode {
	case ModeNormal:
		c.lockedAt = at
		c.frozen = c.live
		c.transition(ModeLocked, at)
	case ModeLocked:
		c.start = c.lockedAt
		c.transition(ModeRangeStart, at)
	case ModeRangeStart:
		sel := NewSelection(c.start, at)
		c.selection = &sel
		c.transition(ModeRangeEnd, at)
	case ModeRangeEnd:
		c.reset(at)
	}
	return nil
}

// Primary resets to normal from any other mode. It reports whether a reset
// happened.
func (c *CursorMachine) Primary(at time.Time) (bool, error) {
	if c.busy {
		return false, ErrReentrantTransition
	}
	if c.mode == ModeNormal {
		return false, nil
	}
	c.reset(at)
	return true, nil
}

// Cancel resets to normal, discarding any selection.
func (c *CursorMachine) Cancel() error {
	if c.busy {
		return ErrReentrantTransition
	}
	if c.mode != ModeNormal {
		c.reset(time.Time{})
	}
	return nil
}

// Perform runs a range action against the current selection. Export and
// image actions return the cursor to normal afterwards, whether or not they
// succeed; range statistics leave the selection in place.
func (c *CursorMachine) Perform(a Action, run func(Selection) error) error {
	if c.busy {
		return ErrReentrantTransition
	}
	if _, err := ParseAction(string(a)); err != nil {
		return err
	}
	if c.mode != ModeRangeEnd || c.selection == nil {
		return ErrNoSelection
	}

	err := c.runBusy(run)
	if a.resetsAfter() {
		c.reset(time.Time{})
	}
	return err
}

// runBusy holds the machine busy for the duration of fn, including when fn
// panics.
func (c *CursorMachine) runBusy(fn func(Selection) error) error {
	c.busy = true
	defer func() { c.busy = false }()
	return fn(*c.selection)
}

func (c *CursorMachine) reset(at time.Time) {
	c.lockedAt = time.Time{}
	c.start = time.Time{}
	c.selection = nil
	c.frozen = Tooltip{}
	c.transition(ModeNormal, at)
}

func (c *CursorMachine) transition(to Mode, at time.Time) {
	tr := Transition{From: c.mode, To: to, At: at}
	c.mode = to
	if c.selection != nil {
		sel := *c.selection
		tr.Selection = &sel
	}

	c.busy = true
	defer func() { c.busy = false }()
	for _, fn := range c.hooks {
		fn(tr)
	}
}
