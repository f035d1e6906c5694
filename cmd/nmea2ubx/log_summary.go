package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"nmea2ubx/internal/replay"
	"nmea2ubx/internal/ubx"
)

type logSummary struct {
	Segments      int
	Packets       int
	Invalid       int
	MaxDuration   time.Duration
	FirstITOW     uint32
	LastITOW      uint32
	FixTypeCounts map[ubx.FixType]int
}

func summarizeUBXLog(records []replay.Record) logSummary {
	s := logSummary{FixTypeCounts: map[ubx.FixType]int{}}
	if len(records) == 0 {
		return s
	}

	origin := time.Duration(0)
	hasPackets := false
	haveITOW := false
	segments := 0

	for _, r := range records {
		if r.IsStart() {
			segments++
			origin = r.At
			continue
		}
		hasPackets = true

		s.Packets++
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}

		// Summary is best-effort: a bad packet is counted, not fatal.
		p, err := ubx.ParseNavPVT(r.Packet)
		if err != nil {
			s.Invalid++
			continue
		}
		if !haveITOW {
			s.FirstITOW = p.ITOW
			haveITOW = true
		}
		s.LastITOW = p.ITOW
		s.FixTypeCounts[p.FixType]++
	}
	if segments == 0 && hasPackets {
		segments = 1
	}
	s.Segments = segments

	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.Open(path)
	if err != nil {
		return err
	}

	s := summarizeUBXLog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "packets: %d\n", s.Packets)
	fmt.Fprintf(w, "invalid_packets: %d\n", s.Invalid)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "itow_ms: %d..%d\n", s.FirstITOW, s.LastITOW)

	keys := make([]int, 0, len(s.FixTypeCounts))
	for k := range s.FixTypeCounts {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	fmt.Fprintf(w, "fix_type_counts:\n")
	for _, k := range keys {
		ft := ubx.FixType(k)
		fmt.Fprintf(w, "  %d (%s): %d\n", k, ft, s.FixTypeCounts[ft])
	}
	return nil
}
