/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	telemetry.go: Binary telemetry frames on a serial port.

	Frame, little endian:
		0xAA 0x55            sync
		uint8                payload length
		uint32               tick counter
		int16 x 4            motor commands, saturated to int16
		float32 x 12         telemetry slots
		uint16               CRC16-CCITT of length..last slot
*/

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/b3nn0/hoverfc/fc"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

const (
	frameSync0 = 0xAA
	frameSync1 = 0x55

	framePayloadLen = 4 + 4*2 + fc.TelemetryLen*4
	frameLen        = 2 + 1 + framePayloadLen + 2
)

// CRC16 table, polynomial 0x1021.
var Crc16Table [256]uint16

func crcInit() {
	var i uint16
	var bitctr uint16
	var crc uint16
	for i = 0; i < 256; i++ {
		crc = (i << 8)
		for bitctr = 0; bitctr < 8; bitctr++ {
			z := uint16(0)
			if (crc & 0x8000) != 0 {
				z = 0x1021
			}
			crc = (crc << 1) ^ z
		}
		Crc16Table[i] = crc
	}
}

func crcCompute(data []byte) uint16 {
	ret := uint16(0)
	for i := 0; i < len(data); i++ {
		ret = Crc16Table[ret>>8] ^ (ret << 8) ^ uint16(data[i])
	}
	return ret
}

func saturateInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// encodeFrame serializes one tick into buf, which must hold frameLen bytes.
func encodeFrame(buf []byte, tick uint64, cmd *fc.ActuationCommand) []byte {
	buf = buf[:frameLen]
	buf[0], buf[1], buf[2] = frameSync0, frameSync1, framePayloadLen
	p := buf[3:]
	binary.LittleEndian.PutUint32(p, uint32(tick))
	p = p[4:]
	for _, m := range cmd.Motors {
		binary.LittleEndian.PutUint16(p, uint16(saturateInt16(m)))
		p = p[2:]
	}
	for _, v := range cmd.Telemetry {
		binary.LittleEndian.PutUint32(p, math.Float32bits(v))
		p = p[4:]
	}
	binary.LittleEndian.PutUint16(p, crcCompute(buf[2:frameLen-2]))
	return buf
}

// decodeFrame is the inverse of encodeFrame.
func decodeFrame(frame []byte) (tick uint32, cmd fc.ActuationCommand, err error) {
	if len(frame) != frameLen || frame[0] != frameSync0 || frame[1] != frameSync1 || frame[2] != framePayloadLen {
		return 0, cmd, fmt.Errorf("telemetry: bad frame header")
	}
	if want, got := crcCompute(frame[2:frameLen-2]), binary.LittleEndian.Uint16(frame[frameLen-2:]); want != got {
		return 0, cmd, fmt.Errorf("telemetry: crc mismatch %04x != %04x", got, want)
	}
	p := frame[3:]
	tick = binary.LittleEndian.Uint32(p)
	p = p[4:]
	for i := range cmd.Motors {
		cmd.Motors[i] = int32(int16(binary.LittleEndian.Uint16(p)))
		p = p[2:]
	}
	for i := range cmd.Telemetry {
		cmd.Telemetry[i] = math.Float32frombits(binary.LittleEndian.Uint32(p))
		p = p[4:]
	}
	return tick, cmd, nil
}

type telemetryFrame struct {
	tick uint64
	cmd  fc.ActuationCommand
}

// telemetryWriter sends every decimation-th tick. Frames are queued to a
// writer goroutine and dropped when the port cannot keep up.
type telemetryWriter struct {
	port       io.WriteCloser
	decimation uint64
	queue      chan telemetryFrame
	done       chan struct{}
	sent       atomic.Uint64
	dropped    atomic.Uint64
}

func openTelemetry(opt TelemetryOpt) (*telemetryWriter, error) {
	port, err := serial.OpenPort(&serial.Config{Name: opt.Port, Baud: opt.Baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opt.Port, err)
	}
	log.Printf("Telemetry Info: %s at %d baud, every %d ticks", opt.Port, opt.Baud, opt.Decimation)
	return newTelemetryWriter(port, opt.Decimation), nil
}

func newTelemetryWriter(port io.WriteCloser, decimation int) *telemetryWriter {
	t := &telemetryWriter{
		port:       port,
		decimation: uint64(decimation),
		queue:      make(chan telemetryFrame, 64),
		done:       make(chan struct{}),
	}
	go t.writer()
	return t
}

func (t *telemetryWriter) Send(tick uint64, cmd *fc.ActuationCommand) {
	if tick%t.decimation != 0 {
		return
	}
	select {
	case t.queue <- telemetryFrame{tick: tick, cmd: *cmd}:
	default:
		t.dropped.Add(1)
	}
}

func (t *telemetryWriter) writer() {
	defer close(t.done)
	buf := make([]byte, frameLen)
	for f := range t.queue {
		if _, err := t.port.Write(encodeFrame(buf, f.tick, &f.cmd)); err != nil {
			addSingleSystemErrorf("telemetry", "Telemetry write failed: %s", err.Error())
			continue
		}
		t.sent.Add(1)
	}
}

// Close drains the queue and closes the port.
func (t *telemetryWriter) Close() error {
	close(t.queue)
	<-t.done
	return t.port.Close()
}
