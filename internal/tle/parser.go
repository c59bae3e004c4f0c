package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads a NORAD element-set catalog from r. Entries may be in
// three-line form (name first) or bare two-line form.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	entries, _, err := ParseCounted(r, logger)
	return entries, err
}

// ParseCounted is Parse that also reports how many entries were skipped.
func ParseCounted(r io.Reader, logger *slog.Logger) (entries []TLEEntry, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading TLE data: %w", err)
	}

	for i := 0; i+1 < len(lines); {
		var raw string
		var next int
		switch {
		case strings.HasPrefix(lines[i], "1 ") && strings.HasPrefix(lines[i+1], "2 "):
			raw = lines[i] + "\n" + lines[i+1]
			next = i + 2
		case i+2 < len(lines) && strings.HasPrefix(lines[i+1], "1 ") && strings.HasPrefix(lines[i+2], "2 "):
			raw = lines[i] + "\n" + lines[i+1] + "\n" + lines[i+2]
			next = i + 3
		default:
			// Resynchronise on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "line", lines[i])
			skipped++
			i++
			continue
		}

		el, err := ParseElements(raw)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "line_index", i, "error", err)
			skipped++
			i = next
			continue
		}
		entries = append(entries, el.Entry())
		i = next
	}

	return entries, skipped, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", dayOfYear)
	}

	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
