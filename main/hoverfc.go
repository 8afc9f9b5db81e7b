/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	hoverfc.go: Process globals and entry point.
*/

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

var hoverfcVersion = "dev" // Set with -ldflags "-X main.hoverfcVersion=..."

// Effective settings of the running daemon.
var globalSettings HoverOpt

// Time since the daemon started.
var hoverClock *monotonic

func main() {
	crcInit() // Initialize CRC16 table.
	if err := getRootCmd().Execute(); err != nil {
		log.Errorln(err)
		os.Exit(1)
	}
}
