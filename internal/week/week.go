// Package week derives the competition bucket ("2024-W07") a date falls in.
//
// The week number is a day offset from January 1st, not an ISO-8601 week:
// week = ceil((days since Jan 1 + 1) / 7), so Jan 1 always starts week 01 and
// the last days of a year can land in week 53.
package week

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

const msPerDay = 86400000

var idRe = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ID returns the launch week token for t, computed in UTC.
func ID(t time.Time) string {
	t = t.UTC()
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := float64(t.Sub(jan1).Milliseconds()) / msPerDay
	n := int(math.Ceil((days + 1) / 7))
	return fmt.Sprintf("%d-W%02d", t.Year(), n)
}

// Current returns the token for now().
func Current(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return ID(now())
}

// Valid reports whether id is a well-formed token with a week in 01..53.
func Valid(id string) bool {
	_, n, ok := parse(id)
	return ok && n >= 1 && n <= 53
}

// Next returns the token of the week following id.
func Next(id string) (string, error) {
	y, n, ok := parse(id)
	if !ok || n < 1 || n > 53 {
		return "", fmt.Errorf("invalid week %q", id)
	}
	return ID(anchor(y, n).AddDate(0, 0, 7)), nil
}

// Previous returns the token of the week before id.
func Previous(id string) (string, error) {
	y, n, ok := parse(id)
	if !ok || n < 1 || n > 53 {
		return "", fmt.Errorf("invalid week %q", id)
	}
	if n == 1 {
		return ID(time.Date(y-1, time.December, 31, 12, 0, 0, 0, time.UTC)), nil
	}
	return fmt.Sprintf("%d-W%02d", y, n-1), nil
}

// anchor is midnight of day 7(n-1) of the year, which always falls inside week n.
func anchor(year, n int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (n-1)*7)
}

// Before reports whether week a is earlier than week b. Tokens are zero
// padded, so lexical order is chronological.
func Before(a, b string) bool {
	return a < b
}

func parse(id string) (year, n int, ok bool) {
	m := idRe.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	n, _ = strconv.Atoi(m[2])
	return year, n, true
}
