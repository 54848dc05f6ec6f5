package interaction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tipWith(v float64) Tooltip {
	return Tooltip{Values: []SeriesValue{{Series: "Ptr", Value: v}}}
}

func TestCursorMachine_FullCycle(t *testing.T) {
	c := NewCursorMachine()
	var modes []Mode
	c.OnTransition(func(tr Transition) { modes = append(modes, tr.To) })

	c.Move(tipWith(1))
	require.NoError(t, c.Secondary(minute(30)))
	assert.Equal(t, ModeLocked, c.Mode())

	// tooltip stays frozen while the pointer moves on
	shown := c.Move(tipWith(2))
	assert.Equal(t, 1.0, shown.Values[0].Value)

	require.NoError(t, c.Secondary(minute(45)))
	assert.Equal(t, ModeRangeStart, c.Mode())
	_, ok := c.Selection()
	assert.False(t, ok)
	assert.Nil(t, c.Menu())

	// end captured before the start: the selection is normalized
	require.NoError(t, c.Secondary(minute(10)))
	assert.Equal(t, ModeRangeEnd, c.Mode())
	sel, ok := c.Selection()
	require.True(t, ok)
	assert.True(t, sel.Start.Equal(minute(10)))
	assert.True(t, sel.End.Equal(minute(30)), "start comes from the lock position")
	assert.False(t, sel.End.Before(sel.Start))
	assert.Equal(t, []Action{ActionExport, ActionSaveImage, ActionRangeStats}, c.Menu())

	require.NoError(t, c.Secondary(minute(50)))
	assert.Equal(t, ModeNormal, c.Mode())
	_, ok = c.Selection()
	assert.False(t, ok)
	assert.Equal(t, 3.0, c.Move(tipWith(3)).Values[0].Value, "unfrozen in normal")

	assert.Equal(t, []Mode{ModeLocked, ModeRangeStart, ModeRangeEnd, ModeNormal}, modes)
}

func TestCursorMachine_ResetPaths(t *testing.T) {
	advance := func(c *CursorMachine, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, c.Secondary(minute(float64(i*10))))
		}
	}

	for n := 1; n <= 3; n++ {
		c := NewCursorMachine()
		advance(c, n)
		require.NoError(t, c.Cancel())
		assert.Equal(t, ModeNormal, c.Mode(), "cancel after %d", n)
		_, ok := c.Selection()
		assert.False(t, ok)

		c = NewCursorMachine()
		advance(c, n)
		reset, err := c.Primary(minute(99))
		require.NoError(t, err)
		assert.True(t, reset)
		assert.Equal(t, ModeNormal, c.Mode(), "primary after %d", n)
	}

	c := NewCursorMachine()
	reset, err := c.Primary(minute(0))
	require.NoError(t, err)
	assert.False(t, reset, "primary in normal is a no-op")
	require.NoError(t, c.Cancel())
}

func TestCursorMachine_RejectsReentrantActions(t *testing.T) {
	c := NewCursorMachine()
	var nested error
	c.OnTransition(func(tr Transition) {
		if tr.To == ModeLocked {
			nested = c.Secondary(minute(1))
		}
	})

	require.NoError(t, c.Secondary(minute(0)))
	assert.ErrorIs(t, nested, ErrReentrantTransition)
	assert.Equal(t, ModeLocked, c.Mode(), "nested action had no effect")
}

func TestCursorMachine_Perform(t *testing.T) {
	toRangeEnd := func() *CursorMachine {
		c := NewCursorMachine()
		for _, m := range []float64{5, 6, 20} {
			require.NoError(t, c.Secondary(minute(m)))
		}
		return c
	}

	t.Run("stats keep the selection", func(t *testing.T) {
		c := toRangeEnd()
		var got Selection
		require.NoError(t, c.Perform(ActionRangeStats, func(s Selection) error { got = s; return nil }))
		assert.Equal(t, 15*time.Minute, got.Duration())
		assert.Equal(t, ModeRangeEnd, c.Mode())
	})

	for _, a := range []Action{ActionExport, ActionSaveImage} {
		t.Run(string(a)+" resets even on failure", func(t *testing.T) {
			c := toRangeEnd()
			boom := errors.New("disk full")
			err := c.Perform(a, func(Selection) error { return boom })
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, ModeNormal, c.Mode())
		})
	}

	t.Run("needs a selection", func(t *testing.T) {
		c := NewCursorMachine()
		err := c.Perform(ActionExport, func(Selection) error { return nil })
		assert.ErrorIs(t, err, ErrNoSelection)
	})

	t.Run("unknown action", func(t *testing.T) {
		c := toRangeEnd()
		err := c.Perform(Action("print"), func(Selection) error { return nil })
		assert.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("no pointer actions while running", func(t *testing.T) {
		c := toRangeEnd()
		var nested error
		require.NoError(t, c.Perform(ActionRangeStats, func(Selection) error {
			nested = c.Cancel()
			return nil
		}))
		assert.ErrorIs(t, nested, ErrReentrantTransition)
		assert.Equal(t, ModeRangeEnd, c.Mode())
	})

	t.Run("panicking action releases the machine", func(t *testing.T) {
		c := toRangeEnd()
		assert.Panics(t, func() {
			_ = c.Perform(ActionRangeStats, func(Selection) error { panic("renderer crashed") })
		})
		require.NoError(t, c.Cancel())
		assert.Equal(t, ModeNormal, c.Mode())
		assert.NoError(t, c.Secondary(minute(30)))
	})
}

func TestSelectionAndModeStrings(t *testing.T) {
	s := NewSelection(minute(10), minute(2))
	assert.True(t, s.Contains(minute(2)))
	assert.True(t, s.Contains(minute(10)))
	assert.False(t, s.Contains(minute(11)))

	assert.Equal(t, "range_end", ModeRangeEnd.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())

	a, err := ParseAction("save_image")
	require.NoError(t, err)
	assert.Equal(t, ActionSaveImage, a)
}
