/*
	Copyright (c) 2023 Adrian Batzill
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logging.go: Initialize logrus, watch log file size and rotate, delete old logs

*/

package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ricochet2200/go-disk-usage/du"
	log "github.com/sirupsen/logrus"
)

const (
	debugLogFile = "hoverfc.log"

	logRotateSize  = 10 * 1024 * 1024 // 10mb limit
	logGenerations = 10
	logMinFree     = 50 * 1024 * 1024 // leave 50mb free
)

type logRotator struct {
	dir  string
	path string
	mu   sync.Mutex
	fp   *os.File
}

func newLogRotator(dir string) *logRotator {
	return &logRotator{dir: dir, path: filepath.Join(dir, debugLogFile)}
}

// rotatedLogs returns hoverfc.log.N files sorted by generation, newest first.
func (l *logRotator) rotatedLogs() []string {
	entries, err := os.ReadDir(l.dir)
	logs := make([]string, 0)
	if err != nil {
		return logs
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), debugLogFile+".") {
			logs = append(logs, filepath.Join(l.dir, e.Name()))
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		return logGeneration(logs[i]) < logGeneration(logs[j])
	})
	return logs
}

func logGeneration(path string) int {
	n, err := strconv.Atoi(path[strings.LastIndex(path, ".")+1:])
	if err != nil {
		return -1
	}
	return n
}

func (l *logRotator) rotate() {
	logs := l.rotatedLogs()

	// Shift suffixes up by one, dropping the oldest generation.
	for i := len(logs) - 1; i >= 0; i-- {
		n := logGeneration(logs[i])
		if n < 0 {
			continue
		}
		if n >= logGenerations-1 {
			os.Remove(logs[i])
		} else {
			os.Rename(logs[i], filepath.Join(l.dir, debugLogFile+"."+strconv.Itoa(n+1)))
		}
	}

	os.Rename(l.path, l.path+".1")
	l.open()
}

func (l *logRotator) deleteOldest() int64 {
	logs := l.rotatedLogs()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if err := os.Remove(oldest); err != nil {
		return 0
	}
	return stat.Size()
}

func (l *logRotator) check() {
	if st, err := os.Stat(l.path); err == nil && st.Size() > logRotateSize {
		l.rotate()
	}

	usage := du.NewDiskUsage(l.dir)
	freeBytes := int64(usage.Free())
	for freeBytes < logMinFree {
		deleted := l.deleteOldest()
		if deleted == 0 {
			break
		}
		freeBytes += deleted
	}
}

func (l *logRotator) watch(done <-chan struct{}) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.check()
		case <-done:
			return
		}
	}
}

func (l *logRotator) open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	oldFp := l.fp
	fp, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		addSingleSystemErrorf(l.path, "Failed to open '%s': %s", l.path, err.Error())
	} else {
		l.fp = fp
		log.SetOutput(io.MultiWriter(fp, os.Stdout))

		// Make sure crash dumps are written to the log as well
		syscall.Dup3(int(fp.Fd()), 2, 0)
	}
	if oldFp != nil {
		oldFp.Close()
	}
}

func initLogging(dir string, done <-chan struct{}) *logRotator {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warnf("FC Warning: cannot create log dir %s: %s", dir, err)
		return nil
	}
	l := newLogRotator(dir)
	l.open()
	go l.watch(done)
	return l
}

func logDbg(msg string, args ...any) {
	if globalSettings.Debug {
		log.Debugf(msg, args...)
	}
}
