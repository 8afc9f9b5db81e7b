// Copyright (c) 2023 Adrian Batzill
// Distributable under the terms of The "BSD New" License
// that can be found in the LICENSE file, herein included
// as part of this header.
// trace.go: record every tick's sensor snapshot and motor command for replay

package main

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/ricochet2200/go-disk-usage/du"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const (
	CONTEXT_SNAPSHOT = "snapshot"
	CONTEXT_EVENT    = "event"

	traceMinFreeBytes = 50 * 1024 * 1024
	traceQueueLen     = 4096
)

// traceRecord is one tick as stored in the trace.
type traceRecord struct {
	Tick   uint64
	Snap   fc.SensorSnapshot
	Motors [4]int32
}

type TraceLogger struct {
	fileHandle *os.File
	gzWriter   *gzip.Writer
	csvWriter  *csv.Writer
	fileName   string
	traceMutex sync.Mutex

	queue   chan []string
	done    chan struct{}
	rows    atomic.Uint64
	dropped atomic.Uint64
}

func fmtFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func fmtBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// marshalTraceRow flattens r into CSV fields. Floats use the shortest
// representation that round-trips float32 exactly.
func marshalTraceRow(r *traceRecord) []string {
	s := &r.Snap
	row := make([]string, 0, 40)
	row = append(row, CONTEXT_SNAPSHOT, strconv.FormatUint(r.Tick, 10), fmtFloat(s.CurrentTime),
		fmtFloat(s.BatteryVoltage.Value), fmtBool(s.BatteryVoltage.Updated),
		fmtFloat(s.IMU.Accelerometer.X), fmtFloat(s.IMU.Accelerometer.Y), fmtFloat(s.IMU.Accelerometer.Z),
		fmtFloat(s.IMU.RateGyro.X), fmtFloat(s.IMU.RateGyro.Y), fmtFloat(s.IMU.RateGyro.Z), fmtBool(s.IMU.Updated))
	for _, a := range s.Joystick.Axes {
		row = append(row, fmtFloat(a))
	}
	for _, b := range s.Joystick.Buttons {
		row = append(row, fmtBool(b))
	}
	row = append(row, fmtBool(s.Joystick.Updated),
		fmtFloat(s.OpticalFlow.ValueX), fmtFloat(s.OpticalFlow.ValueY), fmtBool(s.OpticalFlow.Updated),
		fmtFloat(s.Height.Value), fmtBool(s.Height.Updated),
		fmtFloat(s.Extra.IMUTemperature))
	for _, m := range r.Motors {
		row = append(row, strconv.FormatInt(int64(m), 10))
	}
	return row
}

const traceSnapshotFields = 2 + 1 + 2 + 7 + 11 + 3 + 2 + 1 + 4

type fieldReader struct {
	fields []string
	pos    int
	err    error
}

func (f *fieldReader) next() string {
	s := f.fields[f.pos]
	f.pos++
	return s
}

func (f *fieldReader) float() float32 {
	s := f.next()
	v, err := strconv.ParseFloat(s, 32)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("field %d: %w", f.pos-1, err)
	}
	return float32(v)
}

func (f *fieldReader) bool() bool {
	return f.next() == "1"
}

func (f *fieldReader) int(bits int) int64 {
	s := f.next()
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("field %d: %w", f.pos-1, err)
	}
	return v
}

func unmarshalTraceRow(fields []string) (traceRecord, error) {
	var r traceRecord
	if len(fields) != traceSnapshotFields || fields[0] != CONTEXT_SNAPSHOT {
		return r, fmt.Errorf("trace: malformed snapshot row (%d fields)", len(fields))
	}
	f := &fieldReader{fields: fields, pos: 1}
	r.Tick = uint64(f.int(64))
	s := &r.Snap
	s.CurrentTime = f.float()
	s.BatteryVoltage = fc.BatteryVoltage{Value: f.float(), Updated: f.bool()}
	s.IMU.Accelerometer = fc.Vec3{X: f.float(), Y: f.float(), Z: f.float()}
	s.IMU.RateGyro = fc.Vec3{X: f.float(), Y: f.float(), Z: f.float()}
	s.IMU.Updated = f.bool()
	for i := range s.Joystick.Axes {
		s.Joystick.Axes[i] = f.float()
	}
	for i := range s.Joystick.Buttons {
		s.Joystick.Buttons[i] = f.bool()
	}
	s.Joystick.Updated = f.bool()
	s.OpticalFlow = fc.OpticalFlowSensor{ValueX: f.float(), ValueY: f.float(), Updated: f.bool()}
	s.Height = fc.HeightSensor{Value: f.float(), Updated: f.bool()}
	s.Extra.IMUTemperature = f.float()
	for i := range r.Motors {
		r.Motors[i] = int32(f.int(32))
	}
	return r, f.err
}

// Start opens a new trace file in dir, named after the start time.
func (tracer *TraceLogger) Start(dir string) error {
	tracer.traceMutex.Lock()
	defer tracer.traceMutex.Unlock()
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	fname := filepath.Join(dir, ts+"_trace.csv.gz")

	fileHandle, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return fmt.Errorf("open trace log file: %w", err)
	}
	tracer.startWriter(fileHandle)
	tracer.fileName = fname
	log.Printf("Trace Info: recording to %s", fname)
	return nil
}

func (tracer *TraceLogger) startWriter(fh *os.File) {
	tracer.gzWriter = gzip.NewWriter(fh)
	tracer.csvWriter = csv.NewWriter(tracer.gzWriter)
	tracer.fileHandle = fh
	tracer.queue = make(chan []string, traceQueueLen)
	tracer.done = make(chan struct{})
	go tracer.writer(tracer.queue, tracer.done)
}

func (tracer *TraceLogger) writer(queue <-chan []string, done chan<- struct{}) {
	defer close(done)
	for row := range queue {
		tracer.traceMutex.Lock()
		if tracer.csvWriter != nil {
			_ = tracer.csvWriter.Write(row)
			tracer.rows.Add(1)
		}
		tracer.traceMutex.Unlock()
	}
}

func (tracer *TraceLogger) enqueue(row []string) {
	tracer.traceMutex.Lock()
	defer tracer.traceMutex.Unlock()
	if tracer.queue == nil {
		return
	}
	select {
	case tracer.queue <- row:
	default:
		tracer.dropped.Add(1)
	}
}

// Record queues one tick. It never blocks the caller; rows are dropped when
// the writer falls behind.
func (tracer *TraceLogger) Record(tick uint64, snap *fc.SensorSnapshot, cmd *fc.ActuationCommand) {
	if !tracer.IsActive() {
		return
	}
	tracer.enqueue(marshalTraceRow(&traceRecord{Tick: tick, Snap: *snap, Motors: cmd.Motors}))
}

// Event records a free-form marker, e.g. a phase change.
func (tracer *TraceLogger) Event(tick uint64, what string) {
	if !tracer.IsActive() {
		return
	}
	tracer.enqueue([]string{CONTEXT_EVENT, strconv.FormatUint(tick, 10), what})
}

func (tracer *TraceLogger) Flush() {
	tracer.traceMutex.Lock()
	defer tracer.traceMutex.Unlock()
	if tracer.fileHandle != nil {
		tracer.csvWriter.Flush()
		tracer.gzWriter.Flush()
		tracer.fileHandle.Sync()
	}
}

func (tracer *TraceLogger) Stop() {
	tracer.traceMutex.Lock()
	queue, done := tracer.queue, tracer.done
	tracer.queue = nil
	if queue != nil {
		close(queue)
	}
	tracer.traceMutex.Unlock()
	if queue == nil {
		return
	}
	<-done

	tracer.traceMutex.Lock()
	defer tracer.traceMutex.Unlock()
	tracer.csvWriter.Flush()
	tracer.gzWriter.Close()
	tracer.fileHandle.Close()
	tracer.fileHandle = nil
	tracer.csvWriter = nil
	tracer.gzWriter = nil
}

func (tracer *TraceLogger) IsActive() bool {
	tracer.traceMutex.Lock()
	defer tracer.traceMutex.Unlock()
	return tracer.queue != nil
}

// traceLoggerWatchdog flushes once per second and stops recording when the
// disk runs low.
func traceLoggerWatchdog(tracer *TraceLogger, dir string, done <-chan struct{}) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
		}
		if !tracer.IsActive() {
			return
		}
		usage := du.NewDiskUsage(dir)
		if usage.Free() < traceMinFreeBytes {
			log.Warnln("Trace Warning: space running out - disable trace logging for this run")
			addSingleSystemErrorf("trace", "Trace logging disabled: less than %d MB free", traceMinFreeBytes>>20)
			tracer.Stop()
			return
		}
		tracer.Flush()
		statusMutex.Lock()
		globalStatus.TraceRows = tracer.rows.Load()
		statusMutex.Unlock()
	}
}

// readTrace loads the rows of the given contexts from a trace file. An empty
// contexts list selects every row.
func readTrace(fname string, contexts []string) ([]traceRecord, []string, error) {
	fhandle, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	defer fhandle.Close()
	gzReader, err := gzip.NewReader(fhandle)
	if err != nil {
		return nil, nil, fmt.Errorf("gzip stream of %s: %w", fname, err)
	}
	csvReader := csv.NewReader(gzReader)
	csvReader.FieldsPerRecord = -1

	var records []traceRecord
	var events []string
	for line := 1; ; line++ {
		fields, err := csvReader.Read()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return records, events, fmt.Errorf("%s line %d: %w", fname, line, err)
		}
		if len(fields) < 2 {
			continue
		}
		if len(contexts) > 0 && !slices.Contains(contexts, fields[0]) {
			continue
		}
		switch fields[0] {
		case CONTEXT_SNAPSHOT:
			r, err := unmarshalTraceRow(fields)
			if err != nil {
				return records, events, fmt.Errorf("%s line %d: %w", fname, line, err)
			}
			records = append(records, r)
		case CONTEXT_EVENT:
			if len(fields) >= 3 {
				events = append(events, fields[1]+" "+fields[2])
			}
		}
	}
	return records, events, nil
}

// traceSource replays recorded snapshots as a sensors.Source.
type traceSource struct {
	records []traceRecord
	pos     int
}

func newTraceSource(fname string) (*traceSource, error) {
	records, _, err := readTrace(fname, []string{CONTEXT_SNAPSHOT})
	if err != nil && len(records) == 0 {
		return nil, err
	}
	if err != nil {
		log.Warnf("Trace Warning: replay truncated: %s", err)
	}
	return &traceSource{records: records}, nil
}

func (t *traceSource) Next() (fc.SensorSnapshot, error) {
	if t.pos >= len(t.records) {
		return fc.SensorSnapshot{}, io.EOF
	}
	t.pos++
	return t.records[t.pos-1].Snap, nil
}

// Recorded returns the motor command stored with the last snapshot returned.
func (t *traceSource) Recorded() [4]int32 {
	if t.pos == 0 {
		return [4]int32{}
	}
	return t.records[t.pos-1].Motors
}

func (t *traceSource) Close() error { return nil }
