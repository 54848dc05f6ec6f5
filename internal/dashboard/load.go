package dashboard

import (
	"context"

	"github.com/banshee-data/welldash/internal/backend"
	"github.com/banshee-data/welldash/internal/purge"
	"github.com/banshee-data/welldash/internal/series"
	"github.com/banshee-data/welldash/internal/view"
)

// spawn runs work off the loop and posts the closure it returns back onto
// the loop. Only call from the loop.
func (s *Session) spawn(work func(ctx context.Context) func()) {
	s.inflight++
	ctx := s.runCtx
	go func() {
		apply := work(ctx)
		s.loop.Post(func() {
			apply()
			s.finishFetch()
		})
	}()
}

func (s *Session) finishFetch() {
	s.inflight--
	if s.inflight > 0 {
		return
	}
	for _, ch := range s.settlers {
		close(ch)
	}
	s.settlers = nil
}

// Settle waits until every backend request started so far has been applied.
func (s *Session) Settle(ctx context.Context) error {
	var wait chan struct{}
	err := s.loop.Call(ctx, func() {
		if s.inflight > 0 {
			wait = make(chan struct{})
			s.settlers = append(s.settlers, wait)
		}
	})
	if err != nil || wait == nil {
		return err
	}
	select {
	case <-wait:
		return nil
	case <-s.loop.Done():
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) loadOccurrences() {
	ev := s.views[view.KindEvents]
	token := ev.BeginLoad()
	well := s.cfg.WellID
	s.spawn(func(ctx context.Context) func() {
		set, err := s.cfg.Backend.Occurrences(ctx, well)
		return func() {
			if err != nil {
				s.lastErr[view.KindEvents] = err
				ev.Fail(token, err)
				return
			}
			delete(s.lastErr, view.KindEvents)
			if set.Skipped > 0 {
				logf("%s: skipped %d occurrences without a readable time", well, set.Skipped)
			}
			s.coord.SetOccurrences(set.Occurrences, set.ServerNow)
		}
	})
}

// loadSeries requests pressure and flow rate for the current window.
func (s *Session) loadSeries() {
	s.fetched = s.update.Window
	s.haveFetched = true
	s.loadPressure()
	s.loadFlow()
}

func (s *Session) loadPressure() {
	s.pressureSeq++
	seq := s.pressureSeq
	pv, dv := s.views[view.KindPressure], s.views[view.KindDelta]
	pTok, dTok := pv.BeginLoad(), dv.BeginLoad()

	q := backend.SeriesQuery{
		WellID:          s.cfg.WellID,
		Days:            s.fetched.PeriodDays,
		IntervalMinutes: s.fetched.AggregationMinutes,
		FilterZeros:     s.cfg.Series.FilterZeros,
		FilterSpikes:    s.cfg.Series.FilterSpikes,
		FillMode:        s.cfg.Series.FillMode,
		MaxGapMinutes:   s.cfg.Series.MaxGapMinutes,
	}
	s.spawn(func(ctx context.Context) func() {
		var tube, line *series.Series
		ps, err := s.cfg.Backend.PressureSeries(ctx, q)
		if err == nil {
			tube, line, err = ps.Series()
		}
		return func() {
			if seq != s.pressureSeq {
				logf("%s: discarding stale pressure response", s.cfg.WellID)
				return
			}
			if err != nil {
				s.tube, s.line = nil, nil
				s.lastErr[view.KindPressure] = err
				pv.Fail(pTok, err)
				dv.Fail(dTok, err)
				return
			}
			delete(s.lastErr, view.KindPressure)
			s.tube, s.line = tube, line
			d := s.pressureData()
			pv.Apply(pTok, d)
			dv.Apply(dTok, d)
		}
	})
}

func (s *Session) loadFlow() {
	s.flowSeq++
	seq := s.flowSeq
	fv := s.views[view.KindFlowRate]
	token := fv.BeginLoad()

	// an exclusion toggled before the first load uses the configured window
	win := s.fetched
	if !s.haveFetched {
		win = s.coord.Window()
	}
	q := backend.FlowRateQuery{
		WellID:         s.cfg.WellID,
		Days:           win.PeriodDays,
		Smooth:         s.cfg.SmoothFlow,
		Multiplier:     s.cfg.FlowMultiplier,
		ExcludePeriods: s.excl.Param(s.cfg.WellID),
	}
	s.spawn(func(ctx context.Context) func() {
		var flow, cumulative *series.Series
		fr, err := s.cfg.Backend.FlowRate(ctx, q)
		if err == nil {
			flow, cumulative, err = fr.Series()
		}
		return func() {
			if seq != s.flowSeq {
				logf("%s: discarding stale flow-rate response", s.cfg.WellID)
				return
			}
			if err != nil {
				s.flowRate, s.flowSeries, s.cumulative = nil, nil, nil
				s.lastErr[view.KindFlowRate] = err
				fv.Fail(token, err)
				return
			}
			delete(s.lastErr, view.KindFlowRate)
			s.flowRate, s.flowSeries, s.cumulative = &fr, flow, cumulative
			fv.Apply(token, s.flowData())
		}
	})
}

func (s *Session) pressureData() view.Data {
	var dense []*series.Series
	if s.tube != nil {
		dense = append(dense, s.tube)
	}
	if s.line != nil {
		dense = append(dense, s.line)
	}
	return view.Data{Dense: dense, Occurrences: s.visibleOccurrences()}
}

func (s *Session) flowData() view.Data {
	var dense, secondary []*series.Series
	if s.flowSeries != nil {
		dense = append(dense, s.flowSeries)
	}
	if s.cumulative != nil && s.cumulative.Len() > 0 {
		secondary = append(secondary, s.cumulative)
	}
	return view.Data{Dense: dense, Secondary: secondary, Occurrences: s.visibleOccurrences(), Cycles: s.cycles()}
}

// cycles returns the purge cycles shown on the flow-rate view. Cycles
// detected by the data service take precedence over pairing the timeline's
// purge markers. Exclusion flags always come from the local store.
func (s *Session) cycles() []purge.Cycle {
	var cycles []purge.Cycle
	if s.flowRate != nil && len(s.flowRate.Cycles) > 0 {
		cycles = s.flowRate.PurgeCycles(s.cfg.WellID)
	} else {
		cycles = purge.Pair(s.visibleOccurrences())
	}
	return purge.ApplyExclusions(cycles, s.excl.Set(s.cfg.WellID))
}
