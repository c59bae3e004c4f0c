package tle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// lineLength is the fixed width of both element lines, checksum included.
const lineLength = 69

// ErrMalformedElements matches every *MalformedElementsError via errors.Is.
var ErrMalformedElements = errors.New("malformed element set")

// MalformedElementsError reports an element set that cannot be decoded.
// Line is 1 or 2 for a problem on an element line, 0 for structural problems.
type MalformedElementsError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedElementsError) Error() string {
	msg := "malformed element set"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedElementsError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedElements.
func (e *MalformedElementsError) Is(target error) bool { return target == ErrMalformedElements }

func malformed(line int, reason string, err error) error {
	return &MalformedElementsError{Line: line, Reason: reason, Err: err}
}

// Checksum computes the modulo-10 checksum of an element line: the sum of all
// digits in the first 68 columns, with each minus sign counting as one.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < lineLength-1; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// ParseElements decodes a two-line or three-line element set. A three-line
// set carries the satellite name first, optionally prefixed with "0 ".
// It performs no I/O and has no side effects.
func ParseElements(raw string) (*Elements, error) {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimRight(l, "\r ")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	var name string
	switch len(lines) {
	case 2:
	case 3:
		name = strings.TrimSpace(strings.TrimPrefix(lines[0], "0 "))
		lines = lines[1:]
	default:
		return nil, malformed(0, fmt.Sprintf("expected 2 or 3 lines, got %d", len(lines)), nil)
	}

	line1, line2 := lines[0], lines[1]
	if err := checkLine(line1, 1); err != nil {
		return nil, err
	}
	if err := checkLine(line2, 2); err != nil {
		return nil, err
	}

	el := &Elements{Name: name, Line1: line1, Line2: line2}
	if err := decodeLine1(el, line1); err != nil {
		return nil, malformed(1, "invalid field", err)
	}
	if err := decodeLine2(el, line2); err != nil {
		return nil, malformed(2, "invalid field", err)
	}
	return el, nil
}

func checkLine(line string, n int) error {
	if len(line) != lineLength {
		return malformed(n, fmt.Sprintf("length %d, expected %d", len(line), lineLength), nil)
	}
	if line[0] != byte('0'+n) || line[1] != ' ' {
		return malformed(n, fmt.Sprintf("must start with %q", fmt.Sprintf("%d ", n)), nil)
	}
	want := int(line[lineLength-1] - '0')
	if want < 0 || want > 9 {
		return malformed(n, fmt.Sprintf("checksum column %q is not a digit", line[lineLength-1]), nil)
	}
	if got := Checksum(line); got != want {
		return malformed(n, fmt.Sprintf("checksum %d, line says %d", got, want), nil)
	}
	return nil
}

func decodeLine1(el *Elements, line string) error {
	id, err := strconv.Atoi(strings.TrimSpace(line[2:7]))
	if err != nil {
		return errors.Wrap(err, "catalog number")
	}
	el.NORADID = id
	el.Classification = line[7]
	el.IntlDesignator = strings.TrimSpace(line[9:17])

	epoch, err := parseEpoch(strings.TrimSpace(line[18:32]))
	if err != nil {
		return errors.Wrap(err, "epoch")
	}
	el.Epoch = epoch

	if el.MeanMotionDot, err = strconv.ParseFloat(strings.TrimSpace(line[33:43]), 64); err != nil {
		return errors.Wrap(err, "mean motion first derivative")
	}
	if el.MeanMotionDDot, err = parseAssumedDecimal(line[44:52]); err != nil {
		return errors.Wrap(err, "mean motion second derivative")
	}
	if el.BStar, err = parseAssumedDecimal(line[53:61]); err != nil {
		return errors.Wrap(err, "bstar")
	}
	if t := strings.TrimSpace(line[62:63]); t != "" {
		if el.EphemerisType, err = strconv.Atoi(t); err != nil {
			return errors.Wrap(err, "ephemeris type")
		}
	}
	if n := strings.TrimSpace(line[64:68]); n != "" {
		if el.ElementSetNo, err = strconv.Atoi(n); err != nil {
			return errors.Wrap(err, "element set number")
		}
	}
	return nil
}

func decodeLine2(el *Elements, line string) error {
	id, err := strconv.Atoi(strings.TrimSpace(line[2:7]))
	if err != nil {
		return errors.Wrap(err, "catalog number")
	}
	if id != el.NORADID {
		return errors.Errorf("catalog number %d does not match line 1 (%d)", id, el.NORADID)
	}

	if el.Inclination, err = parseField(line[8:16]); err != nil {
		return errors.Wrap(err, "inclination")
	}
	if el.RAAN, err = parseField(line[17:25]); err != nil {
		return errors.Wrap(err, "right ascension of ascending node")
	}
	if el.Eccentricity, err = strconv.ParseFloat("."+strings.TrimSpace(line[26:33]), 64); err != nil {
		return errors.Wrap(err, "eccentricity")
	}
	if el.ArgPerigee, err = parseField(line[34:42]); err != nil {
		return errors.Wrap(err, "argument of perigee")
	}
	if el.MeanAnomaly, err = parseField(line[43:51]); err != nil {
		return errors.Wrap(err, "mean anomaly")
	}
	if el.MeanMotion, err = parseField(line[52:63]); err != nil {
		return errors.Wrap(err, "mean motion")
	}
	if n := strings.TrimSpace(line[63:68]); n != "" {
		if el.RevNumber, err = strconv.Atoi(n); err != nil {
			return errors.Wrap(err, "revolution number")
		}
	}
	return nil
}

func parseField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseAssumedDecimal decodes the compact exponent notation used for the
// drag terms: " 12345-3" means 0.12345e-3.
func parseAssumedDecimal(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, nil
	}
	sign := ""
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}
	exp := "0"
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		exp = s[i:]
		s = s[:i]
	}
	return strconv.ParseFloat(sign+"."+s+"e"+exp, 64)
}
