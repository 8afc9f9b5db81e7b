/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	metrics.go: Prometheus instrumentation of the flight loop.
*/

package main

import (
	"github.com/b3nn0/hoverfc/fc"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	motorCommand = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hoverfc_motor_command",
			Help: "Last PWM command per motor.",
		},
		[]string{"motor"},
	)

	attitudeEstimate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hoverfc_attitude_rad",
			Help: "Estimated attitude.",
		},
		[]string{"axis"},
	)

	heightEstimate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hoverfc_height_m",
		Help: "Estimated height above ground.",
	})

	totalTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hoverfc_ticks_total",
		Help: "Completed control ticks.",
	})

	totalOverruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hoverfc_overruns_total",
		Help: "Ticks that took longer than the tick period.",
	})

	staleReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoverfc_stale_readings_total",
			Help: "Ticks on which a sensor carried no new reading.",
		},
		[]string{"sensor"},
	)

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoverfc_tick_seconds",
		Help:    "Wall time spent in one tick, sensor read to motor write.",
		Buckets: prometheus.ExponentialBuckets(25e-6, 2, 10),
	})

	cpuTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hoverfc_cpu_temp",
		Help: "Current CPU temp.",
	})
)

var motorLabels = [4]string{"1", "2", "3", "4"}

func registerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(motorCommand, attitudeEstimate, heightEstimate, totalTicks,
		totalOverruns, staleReadings, tickDuration, cpuTemp)
}

func observeTick(st *fc.EstimatorState, snap *fc.SensorSnapshot, cmd *fc.ActuationCommand) {
	totalTicks.Inc()
	for i, m := range cmd.Motors {
		motorCommand.WithLabelValues(motorLabels[i]).Set(float64(m))
	}
	attitudeEstimate.WithLabelValues("roll").Set(float64(st.Roll))
	attitudeEstimate.WithLabelValues("pitch").Set(float64(st.Pitch))
	attitudeEstimate.WithLabelValues("yaw").Set(float64(st.Yaw))
	heightEstimate.Set(float64(st.Height))

	if !snap.IMU.Updated {
		staleReadings.WithLabelValues("imu").Inc()
	}
	if !snap.Height.Updated {
		staleReadings.WithLabelValues("range").Inc()
	}
	if !snap.OpticalFlow.Updated {
		staleReadings.WithLabelValues("flow").Inc()
	}
}
