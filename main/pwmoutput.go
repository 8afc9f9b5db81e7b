/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	pwmoutput.go: Raspberry Pi hardware PWM motor output.
*/

package main

import (
	"fmt"

	"github.com/b3nn0/hoverfc/common"
	"github.com/b3nn0/hoverfc/fc"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// BCM pin -> hardware PWM channel. The BCM2835 has two channels, so at most
// two motors can be driven independently (thrust stand / bench use).
var pwmChannel = map[int]int{
	12: 0, 18: 0,
	13: 1, 19: 1,
}

type pwmOutput struct {
	opt  PWMOpt
	pins []rpio.Pin
}

// pulseFor maps a motor command onto the ESC pulse width, saturating at the
// configured command range.
func (o PWMOpt) pulseFor(cmd int32) uint32 {
	if cmd < o.CommandMin {
		cmd = o.CommandMin
	}
	if cmd > o.CommandMax {
		cmd = o.CommandMax
	}
	p := common.Fmap(float64(cmd), float64(o.CommandMin), float64(o.CommandMax), float64(o.PulseMin), float64(o.PulseMax))
	return uint32(p + 0.5)
}

func newPWMOutput(opt PWMOpt) (*pwmOutput, error) {
	if !common.IsRunningAsRoot() {
		log.Warnln("PWM Warning: not running as root, /dev/mem may be inaccessible")
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("rpio: %w", err)
	}
	out := &pwmOutput{opt: opt}
	for _, n := range opt.Pins {
		pin := rpio.Pin(n)
		pin.Mode(rpio.Pwm)
		pin.Freq(opt.Frequency)
		pin.DutyCycle(opt.PulseMin, opt.Cycle)
		out.pins = append(out.pins, pin)
	}
	log.Printf("PWM Info: driving motors on BCM %v, %d Hz frame", opt.Pins, opt.Frequency/int(opt.Cycle))
	return out, nil
}

func (p *pwmOutput) Write(cmd fc.ActuationCommand) error {
	for i, pin := range p.pins {
		pin.DutyCycle(p.opt.pulseFor(cmd.Motors[i]), p.opt.Cycle)
	}
	return nil
}

// Close idles every motor before releasing the GPIO memory.
func (p *pwmOutput) Close() error {
	for _, pin := range p.pins {
		pin.DutyCycle(p.opt.PulseMin, p.opt.Cycle)
	}
	return rpio.Close()
}
