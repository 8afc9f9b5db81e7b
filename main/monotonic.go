/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	monotonic.go: Monotonic uptime clock, immune to RTC steps on the RPi.
*/

package main

import (
	"strings"
	"sync/atomic"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// monotonic counts 10 ms steps since the daemon started. Time is the zero
// time plus the uptime, so comparisons never see a wall-clock jump.
type monotonic struct {
	millis atomic.Uint64
	ticker *time.Ticker
	done   chan struct{}
}

func (m *monotonic) watcher() {
	for {
		select {
		case <-m.ticker.C:
			m.millis.Add(10)
		case <-m.done:
			return
		}
	}
}

func (m *monotonic) Milliseconds() uint64 {
	return m.millis.Load()
}

func (m *monotonic) Time() time.Time {
	return time.Time{}.Add(time.Duration(m.Milliseconds()) * time.Millisecond)
}

// Uptime renders the elapsed time since start, e.g. "12 minutes".
func (m *monotonic) Uptime() string {
	return strings.TrimSpace(humanize.RelTime(time.Time{}, m.Time(), "", ""))
}

func (m *monotonic) Stop() {
	m.ticker.Stop()
	close(m.done)
}

func NewMonotonic() *monotonic {
	t := &monotonic{ticker: time.NewTicker(10 * time.Millisecond), done: make(chan struct{})}
	go t.watcher()
	return t
}
