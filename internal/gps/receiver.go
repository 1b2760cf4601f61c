// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// maxSentence is the NMEA 0183 sentence limit (82) with some slack for
// receivers that append proprietary fields.
const maxSentence = 128

// Receiver is a byte-fed NMEA parser. Bytes must be fed in order and none
// may be skipped, otherwise the sentence in progress is corrupted and
// dropped at the checksum.
//
// Receiver is not safe for concurrent use; the station feeds and reads it
// from the foreground loop only.
type Receiver struct {
	buf      [maxSentence]byte
	n        int
	overflow bool

	fix Fix

	sentences uint64
	errors    uint64
}

// NewReceiver returns a receiver with no fix.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// Feed consumes one byte from the serial stream.
func (r *Receiver) Feed(b byte) {
	switch b {
	case '$', '!':
		r.n = 0
		r.overflow = false
		r.buf[r.n] = b
		r.n++
	case '\n':
		if r.n > 0 && !r.overflow {
			r.parse(string(trimCR(r.buf[:r.n])))
		}
		r.n = 0
		r.overflow = false
	default:
		if r.n == 0 {
			// noise between sentences
			return
		}
		if r.n == len(r.buf) {
			r.overflow = true
			return
		}
		r.buf[r.n] = b
		r.n++
	}
}

// FeedBytes feeds every byte of p in order.
func (r *Receiver) FeedBytes(p []byte) {
	for _, b := range p {
		r.Feed(b)
	}
}

// CurrentFix returns the latest assembled fix.
func (r *Receiver) CurrentFix() Fix { return r.fix }

// Stats returns the number of parsed sentences and rejected sentences.
func (r *Receiver) Stats() (sentences, errors uint64) {
	return r.sentences, r.errors
}

func trimCR(p []byte) []byte {
	if len(p) > 0 && p[len(p)-1] == '\r' {
		return p[:len(p)-1]
	}
	return p
}

func (r *Receiver) parse(line string) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		r.errors++
		return
	}
	r.sentences++

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		r.fix.Valid = m.Validity == nmea.ValidRMC
		if r.fix.Valid {
			r.fix.Latitude = m.Latitude
			r.fix.Longitude = m.Longitude
		}
		r.fix.DateTimeValid = m.Date.Valid && m.Time.Valid
		if r.fix.DateTimeValid {
			r.fix.Time = dateTime(m.Date, m.Time)
		}

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		r.fix.Satellites = m.NumSatellites
		if m.FixQuality != nmea.Invalid {
			r.fix.Altitude = m.Altitude
		}

	default:
		// GSA, GSV, VTG etc. carry nothing the station reports
	}
}

// dateTime combines the RMC date and time fields into a UTC time. RMC
// carries a two-digit year; 80..99 map to the 1900s so a receiver still at
// its 1980 reset date reports 1980.
func dateTime(d nmea.Date, t nmea.Time) time.Time {
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
