/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	flightloop.go: Fixed-rate driver around fc.Tick.
*/

package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/b3nn0/hoverfc/sensors"
	log "github.com/sirupsen/logrus"
)

// flightLoop owns the estimator state and calls fc.Tick once per snapshot.
// Everything after the motor write (trace, datalog, telemetry, status) is
// handed off without blocking.
type flightLoop struct {
	cfg   *fc.Config
	state *fc.EstimatorState
	src   sensors.Source
	sinks []sensors.MotorSink

	trace     *TraceLogger
	datalog   *dataLogger
	telemetry *telemetryWriter

	period   time.Duration
	realtime bool
	overruns uint64
}

func newFlightLoop(cfg *fc.Config, src sensors.Source, sinks ...sensors.MotorSink) *flightLoop {
	return &flightLoop{
		cfg:      cfg,
		state:    fc.NewEstimatorState(cfg),
		src:      src,
		sinks:    sinks,
		period:   time.Duration(float64(cfg.DT) * float64(time.Second)),
		realtime: true,
	}
}

// step runs one tick. A sink that fails is logged and removed; the loop
// keeps flying on the rest.
func (l *flightLoop) step() (fc.ActuationCommand, error) {
	snap, err := l.src.Next()
	if err != nil {
		return fc.ActuationCommand{}, err
	}
	phase := l.state.Phase
	cmd := fc.Tick(l.cfg, l.state, &snap)
	tick := l.state.Ticks - 1

	for i := 0; i < len(l.sinks); i++ {
		if err := l.sinks[i].Write(cmd); err != nil {
			log.Errorf("FC Error: motor sink %T failed, disabling: %s", l.sinks[i], err)
			addSingleSystemErrorf("sink", "Motor output disabled: %s", err.Error())
			l.sinks = append(l.sinks[:i], l.sinks[i+1:]...)
			i--
		}
	}

	if phase != l.state.Phase {
		log.Printf("FC Info: %s -> %s at t=%.3fs, gyro bias %.5f %.5f %.5f rad/s", phase, l.state.Phase,
			snap.CurrentTime, l.state.GyroBias.X, l.state.GyroBias.Y, l.state.GyroBias.Z)
		if l.trace != nil {
			l.trace.Event(tick, l.state.Phase.String())
		}
	}

	if l.trace != nil {
		l.trace.Record(tick, &snap, &cmd)
	}
	if l.datalog != nil {
		l.datalog.Log(newTickRow(snap.CurrentTime, tick, l.state.Phase.String(), cmd.Motors, cmd.Telemetry))
	}
	if l.telemetry != nil {
		l.telemetry.Send(tick, &cmd)
	}
	observeTick(l.state, &snap, &cmd)
	updateStatus(l.state, &snap, &cmd)
	return cmd, nil
}

// Run ticks until ctx is done, the source is exhausted or limit ticks have
// run (0 = no limit). Overruns are counted, never caught up.
func (l *flightLoop) Run(ctx context.Context, limit uint64) error {
	var ticker *time.Ticker
	if l.realtime {
		ticker = time.NewTicker(l.period)
		defer ticker.Stop()
	}
	log.Printf("FC Info: flight loop running at %v per tick", l.period)

	for n := uint64(0); limit == 0 || n < limit; n++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		_, err := l.step()
		if errors.Is(err, io.EOF) {
			log.Println("FC Info: source exhausted")
			return nil
		}
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		tickDuration.Observe(elapsed.Seconds())
		if l.realtime && elapsed > l.period {
			l.overruns++
			totalOverruns.Inc()
			statusMutex.Lock()
			globalStatus.Overruns = l.overruns
			statusMutex.Unlock()
		}
	}
	return nil
}

// Close releases the source and every sink.
func (l *flightLoop) Close() error {
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.src.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
