/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	serve.go: Wire the configured source, sinks and recorders around the
	 flight loop and run it until a signal arrives.
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/b3nn0/hoverfc/common"
	"github.com/b3nn0/hoverfc/fc"
	"github.com/b3nn0/hoverfc/sensors"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

func openSource(opt *HoverOpt) (sensors.Source, []sensors.MotorSink, error) {
	switch opt.Loop.Source {
	case sourceSim:
		sim := sensors.NewSimulator(opt.Sim)
		return sim, []sensors.MotorSink{sim}, nil
	case sourceReplay:
		src, err := newTraceSource(opt.Loop.TraceFile)
		return src, nil, err
	case sourceMPU6050:
		i2cbus := embd.NewI2CBus(opt.Loop.I2CBus)
		src, err := sensors.NewMPU6050(i2cbus, opt.Vehicle.Gravity)
		return src, nil, err
	case sourceICM20948:
		i2cbus := embd.NewI2CBus(opt.Loop.I2CBus)
		src, err := sensors.NewICM20948(&i2cbus, fc.TickRate, opt.Vehicle.Gravity)
		return src, nil, err
	}
	return nil, nil, fmt.Errorf("unknown source %q", opt.Loop.Source)
}

// buildFlightLoop opens the source and every enabled output. Optional
// outputs that fail to open are logged and left out.
func buildFlightLoop(opt *HoverOpt) (*flightLoop, error) {
	src, sinks, err := openSource(opt)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", opt.Loop.Source, err)
	}
	if opt.PWM.Enable {
		if out, err := newPWMOutput(opt.PWM); err != nil {
			log.Errorf("FC Error: PWM output disabled: %s", err)
			addSingleSystemErrorf("pwm", "PWM output disabled: %s", err.Error())
		} else {
			sinks = append(sinks, out)
		}
	}

	loop := newFlightLoop(&opt.Vehicle, src, sinks...)
	loop.realtime = opt.Loop.Realtime

	if opt.Trace.Enable {
		loop.trace = new(TraceLogger)
		if err := loop.trace.Start(opt.Trace.Dir); err != nil {
			log.Errorf("FC Error: trace disabled: %s", err)
			loop.trace = nil
		}
	}
	if opt.Datalog.Enable {
		if loop.datalog, err = openDataLog(opt.Datalog.Path, dataLogMaxUsage); err != nil {
			log.Errorf("FC Error: datalog disabled: %s", err)
			addSingleSystemErrorf("datalog", "Datalog disabled: %s", err.Error())
			loop.datalog = nil
		}
	}
	if opt.Telemetry.Enable {
		if loop.telemetry, err = openTelemetry(opt.Telemetry); err != nil {
			log.Errorf("FC Error: telemetry disabled: %s", err)
			addSingleSystemErrorf("telemetry", "Telemetry disabled: %s", err.Error())
			loop.telemetry = nil
		}
	}
	return loop, nil
}

// shutdownRecorders flushes and closes every recorder the loop owns.
func (l *flightLoop) shutdownRecorders() {
	if l.trace != nil {
		l.trace.Stop()
	}
	if l.datalog != nil {
		if err := l.datalog.Close(); err != nil {
			log.Errorf("FC Error: datalog close: %s", err)
		}
	}
	if l.telemetry != nil {
		statusMutex.Lock()
		globalStatus.TelemetrySent = l.telemetry.sent.Load()
		statusMutex.Unlock()
		if err := l.telemetry.Close(); err != nil {
			log.Errorf("FC Error: telemetry close: %s", err)
		}
	}
}

// serve runs the daemon until SIGINT/SIGTERM or the configured duration.
func serve(opt *HoverOpt) error {
	globalSettings = *opt
	done := make(chan struct{})
	defer close(done)

	initLogging(opt.LogDir, done)
	hoverClock = NewMonotonic()
	defer hoverClock.Stop()

	statusMutex.Lock()
	globalStatus.Version = hoverfcVersion
	globalStatus.Source = opt.Loop.Source
	statusMutex.Unlock()
	log.Printf("FC Info: hoverfc %s starting, source %s", hoverfcVersion, opt.Loop.Source)

	reg := prometheus.NewRegistry()
	registerMetrics(reg)
	statusBroadcaster = NewUIBroadcaster()
	srv := managementInterface(opt.Metrics.Listen, reg)
	go statusSender(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go common.CpuTempMonitor(ctx, func(t float32) {
		cpuTemp.Set(float64(t))
		statusMutex.Lock()
		globalStatus.CPUTemp = t
		statusMutex.Unlock()
	})

	loop, err := buildFlightLoop(opt)
	if err != nil {
		return err
	}
	if loop.trace != nil {
		go traceLoggerWatchdog(loop.trace, opt.Trace.Dir, done)
	}
	if opt.Debug {
		go statusDumper(os.Stdout, 10*time.Second, done)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case sig := <-interrupt:
			log.Println("FC Info: got signal:", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var limit uint64
	if opt.Loop.Duration > 0 {
		limit = uint64(opt.Loop.Duration * fc.TickRate)
	}
	runErr := loop.Run(ctx, limit)

	loop.shutdownRecorders()
	if err := loop.Close(); err != nil {
		log.Errorf("FC Error: close: %s", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("FC Error: management interface shutdown: %s", err)
	}

	s := snapshotStatus()
	log.Printf("FC Info: stopped after %d ticks (%s), %d overruns", s.Ticks, hoverClock.Uptime(), s.Overruns)
	return runErr
}
