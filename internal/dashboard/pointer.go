package dashboard

import (
	"context"

	"github.com/banshee-data/welldash/internal/chartsync"
	"github.com/banshee-data/welldash/internal/interaction"
	"github.com/banshee-data/welldash/internal/view"
)

// PointerMove answers a pointer over a view at horizontal pixel px.
func (s *Session) PointerMove(ctx context.Context, kind view.Kind, px float64) (interaction.Tooltip, error) {
	var tip interaction.Tooltip
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		tip = v.PointerMove(px)
		return nil
	})
	return tip, err
}

// Secondary is the secondary click: lock, then range start, then range end.
func (s *Session) Secondary(ctx context.Context, kind view.Kind, px float64) (interaction.Mode, error) {
	var mode interaction.Mode
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		err = v.Secondary(px)
		mode = v.Cursor().Mode()
		return err
	})
	return mode, err
}

// Primary is the primary click. It resets the cursor and reports whether
// anything was reset.
func (s *Session) Primary(ctx context.Context, kind view.Kind, px float64) (bool, error) {
	var reset bool
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		reset, err = v.Primary(px)
		return err
	})
	return reset, err
}

// Cancel is the escape key.
func (s *Session) Cancel(ctx context.Context, kind view.Kind) error {
	return s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		return v.Cancel()
	})
}

// GestureComplete records a finished pan or zoom on one view and mirrors the
// new range to the others. It returns the number of views updated.
func (s *Session) GestureComplete(ctx context.Context, kind view.Kind, vp chartsync.Viewport) (int, error) {
	var n int
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		n = v.GestureComplete(vp)
		return nil
	})
	return n, err
}

// ZoomBack undoes the last gesture of one view. view.ErrNoHistory is
// returned when there is nothing to undo.
func (s *Session) ZoomBack(ctx context.Context, kind view.Kind) (chartsync.Viewport, error) {
	var vp chartsync.Viewport
	err := s.do(ctx, func() error {
		v, err := s.view(kind)
		if err != nil {
			return err
		}
		vp, err = v.ZoomBack()
		return err
	})
	return vp, err
}

// ResetZoom returns every view to the full window and drops the zoom
// histories.
func (s *Session) ResetZoom(ctx context.Context) (chartsync.Viewport, error) {
	var vp chartsync.Viewport
	err := s.do(ctx, func() error {
		vp = s.bus.Reset()
		for _, v := range s.views {
			v.ClearHistory()
		}
		return nil
	})
	return vp, err
}
