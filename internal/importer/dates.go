package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Excel serial day 0 corresponds to 1899-12-30 (the off-by-two epoch keeps
// compatibility with the 1900 leap-year bug).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	minYear = 1900
	maxYear = 2100
)

// ParseDate accepts, in order: ISO YYYY-MM-DD, DD/MM/YYYY, DD/MM/YY,
// MM/DD/YYYY, YYYY/MM/DD, DD-MM-YYYY, and Excel serial-day integers.
// Two-digit years 00-30 map to 20YY, 31-99 to 19YY. Years outside 1900-2100
// are rejected.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := parseTwoDigitYear(value); err == nil {
		return checkYear(t)
	}

	layouts := []string{
		"2006-01-02",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
		"02-01-2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return checkYear(t)
		}
	}

	if serial, err := strconv.Atoi(value); err == nil {
		return checkYear(excelEpoch.AddDate(0, 0, serial))
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

func parseTwoDigitYear(value string) (time.Time, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 || len(parts[2]) != 2 {
		return time.Time{}, fmt.Errorf("not a two-digit-year date")
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	yy, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, err
	}

	year := 1900 + yy
	if yy <= 30 {
		year = 2000 + yy
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid calendar date %q", value)
	}
	return t, nil
}

func checkYear(t time.Time) (time.Time, error) {
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, fmt.Errorf("year %d out of range", t.Year())
	}
	return t, nil
}
