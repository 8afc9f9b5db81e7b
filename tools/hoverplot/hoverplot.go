/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	hoverplot.go: Plot a flight from the sqlite datalog.
*/

package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type series struct {
	title, ylabel string
	names         []string
	columns       []string
}

var charts = []series{
	{"Attitude", "rad", []string{"roll", "pitch", "des roll", "des pitch"}, []string{"t0", "t1", "t7", "t8"}},
	{"Height", "m, m/s", []string{"height", "vz"}, []string{"t6", "t5"}},
	{"Horizontal velocity", "m/s", []string{"vx", "vy", "corr x", "corr y"}, []string{"t3", "t4", "t10", "t11"}},
	{"Motors", "PWM", []string{"m1", "m2", "m3", "m4"}, []string{"motor1", "motor2", "motor3", "motor4"}},
}

func load(db *sql.DB, columns []string) ([]plotter.XYs, error) {
	query := "SELECT time"
	for _, c := range columns {
		query += ", " + c
	}
	rows, err := db.Query(query + " FROM ticks ORDER BY tick")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]plotter.XYs, len(columns))
	vals := make([]float64, len(columns)+1)
	ptrs := make([]interface{}, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range columns {
			out[i] = append(out[i], plotter.XY{X: vals[0], Y: vals[i+1]})
		}
	}
	return out, rows.Err()
}

func render(db *sql.DB, s series, fname string) error {
	data, err := load(db, s.columns)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = s.title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = s.ylabel

	var lines []interface{}
	for i, name := range s.names {
		lines = append(lines, name, data[i])
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 4*vg.Inch, fname)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("usage: %s <hoverfc.sqlite> [output prefix]\n", os.Args[0])
		os.Exit(1)
	}
	prefix := "hover"
	if len(os.Args) > 2 {
		prefix = os.Args[2]
	}

	db, err := sql.Open("sqlite3", "file:"+os.Args[1]+"?mode=ro")
	if err != nil {
		fmt.Printf("open %s: %s\n", os.Args[1], err.Error())
		os.Exit(1)
	}
	defer db.Close()

	for i, s := range charts {
		fname := fmt.Sprintf("%s_%d.png", prefix, i+1)
		if err := render(db, s, fname); err != nil {
			fmt.Printf("%s: %s\n", s.title, err.Error())
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", fname)
	}
}
