/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	datalog.go: Log per-tick telemetry to SQLite. Rows are committed in
	 timestamp buckets of LOG_TIMESTAMP_RESOLUTION.
*/

package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ricochet2200/go-disk-usage/du"
	log "github.com/sirupsen/logrus"
)

const (
	LOG_TIMESTAMP_RESOLUTION = 50 * time.Millisecond

	dataLogMaxUsage = 0.95 // Stop inserting above this disk usage.
	dataLogQueueLen = 10240
)

// TickRow is one row of the ticks table; columns are derived from the
// exported fields.
type TickRow struct {
	Time                           float32
	Tick                           uint64
	Phase                          string
	Motor1, Motor2, Motor3, Motor4 int32
	T0, T1, T2, T3, T4, T5         float32
	T6, T7, T8, T9, T10, T11       float32
}

func newTickRow(t float32, tick uint64, phase string, motors [4]int32, tel [12]float32) TickRow {
	return TickRow{
		Time: t, Tick: tick, Phase: phase,
		Motor1: motors[0], Motor2: motors[1], Motor3: motors[2], Motor4: motors[3],
		T0: tel[0], T1: tel[1], T2: tel[2], T3: tel[3], T4: tel[4], T5: tel[5],
		T6: tel[6], T7: tel[7], T8: tel[8], T9: tel[9], T10: tel[10], T11: tel[11],
	}
}

var sqlTypeMap = map[reflect.Kind]string{
	reflect.Bool:    "INTEGER",
	reflect.Int:     "INTEGER",
	reflect.Int8:    "INTEGER",
	reflect.Int16:   "INTEGER",
	reflect.Int32:   "INTEGER",
	reflect.Int64:   "INTEGER",
	reflect.Uint:    "INTEGER",
	reflect.Uint8:   "INTEGER",
	reflect.Uint16:  "INTEGER",
	reflect.Uint32:  "INTEGER",
	reflect.Uint64:  "INTEGER",
	reflect.Float32: "REAL",
	reflect.Float64: "REAL",
	reflect.String:  "TEXT",
}

// columns lists the SQL-mappable fields of a struct type.
func columns(t reflect.Type) (names, types []string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		sqlType, ok := sqlTypeMap[f.Type.Kind()]
		if !ok || !f.IsExported() {
			continue
		}
		names = append(names, strings.ToLower(f.Name))
		types = append(types, sqlType)
	}
	return names, types
}

func makeTable(i interface{}, tbl string, db *sql.DB) error {
	names, types := columns(reflect.TypeOf(i))
	defs := make([]string, len(names))
	for k := range names {
		defs[k] = names[k] + " " + types[k]
	}
	tblCreate := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, %s)", tbl, strings.Join(defs, ", "))
	_, err := db.Exec(tblCreate)
	return err
}

func insertStatement(i interface{}, tbl string) string {
	names, _ := columns(reflect.TypeOf(i))
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES(%s)", tbl, strings.Join(names, ","),
		strings.Join(strings.Split(strings.Repeat("?", len(names)), ""), ","))
}

// insertArgs returns the field values in column order.
func insertArgs(i interface{}) []interface{} {
	val := reflect.ValueOf(i)
	t := val.Type()
	args := make([]interface{}, 0, t.NumField())
	for k := 0; k < t.NumField(); k++ {
		if _, ok := sqlTypeMap[t.Field(k).Type.Kind()]; !ok || !t.Field(k).IsExported() {
			continue
		}
		args = append(args, val.Field(k).Interface())
	}
	return args
}

type dataLogger struct {
	db       *sql.DB
	path     string
	insert   string
	maxUsage float32
	queue    chan TickRow
	done     chan struct{}
	rows     atomic.Uint64
	dropped  atomic.Uint64
}

// openDataLog creates (or appends to) the ticks table at path. Inserts pause
// while the disk holding it is above maxUsage (0..1).
func openDataLog(path string, maxUsage float32) (*dataLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(): %w", err)
	}
	if err := makeTable(TickRow{}, "ticks", db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ticks table: %w", err)
	}
	d := &dataLogger{
		db:       db,
		path:     path,
		insert:   insertStatement(TickRow{}, "ticks"),
		maxUsage: maxUsage,
		queue:    make(chan TickRow, dataLogQueueLen),
		done:     make(chan struct{}),
	}
	go d.writer()
	log.Printf("Datalog Info: logging ticks to %s", path)
	return d, nil
}

// Log queues one row without blocking.
func (d *dataLogger) Log(r TickRow) {
	select {
	case d.queue <- r:
	default:
		d.dropped.Add(1)
	}
}

func (d *dataLogger) diskFull() bool {
	return du.NewDiskUsage(filepath.Dir(d.path)).Usage() > d.maxUsage
}

// commit writes a bucket of rows in a single transaction.
func (d *dataLogger) commit(bucket []TickRow) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(d.insert)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range bucket {
		if _, err := stmt.Exec(insertArgs(r)...); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.rows.Add(uint64(len(bucket)))
	return nil
}

func (d *dataLogger) writer() {
	defer close(d.done)
	ticker := time.NewTicker(LOG_TIMESTAMP_RESOLUTION)
	defer ticker.Stop()

	bucket := make([]TickRow, 0, 64)
	flush := func() {
		if len(bucket) == 0 {
			return
		}
		if d.diskFull() {
			addSingleSystemErrorf("datalog", "Datalog paused: disk above %.0f%%", d.maxUsage*100)
		} else if err := d.commit(bucket); err != nil {
			addSingleSystemErrorf("datalog", "Datalog insert failed: %s", err.Error())
		}
		bucket = bucket[:0]
	}
	for {
		select {
		case r, ok := <-d.queue:
			if !ok {
				flush()
				return
			}
			bucket = append(bucket, r)
		case <-ticker.C:
			flush()
			d.publish()
		}
	}
}

func (d *dataLogger) publish() {
	var size uint64
	if fi, err := os.Stat(d.path); err == nil {
		size = uint64(fi.Size())
	}
	statusMutex.Lock()
	globalStatus.DatalogRows = d.rows.Load()
	globalStatus.DatalogBytes = size
	statusMutex.Unlock()
}

// Close flushes pending rows and closes the database.
func (d *dataLogger) Close() error {
	close(d.queue)
	<-d.done
	d.publish()
	return d.db.Close()
}
