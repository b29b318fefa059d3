package interp

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// DatePart names the value extracted from a date-time by the date and
// currentdate tests (RFC 5260).
type DatePart string

const (
	DatePartYear    DatePart = "year"
	DatePartMonth   DatePart = "month"
	DatePartDay     DatePart = "day"
	DatePartDate    DatePart = "date"
	DatePartJulian  DatePart = "julian"
	DatePartHour    DatePart = "hour"
	DatePartMinute  DatePart = "minute"
	DatePartSecond  DatePart = "second"
	DatePartTime    DatePart = "time"
	DatePartISO8601 DatePart = "iso8601"
	DatePartStd11   DatePart = "std11"
	DatePartZone    DatePart = "zone"
	DatePartWeekday DatePart = "weekday"
)

func extractDatePart(t time.Time, part DatePart) (string, error) {
	switch part {
	case DatePartYear:
		return strconv.Itoa(t.Year()), nil
	case DatePartMonth:
		return fmt.Sprintf("%02d", int(t.Month())), nil
	case DatePartDay:
		return fmt.Sprintf("%02d", t.Day()), nil
	case DatePartDate:
		return t.Format("2006-01-02"), nil
	case DatePartJulian:
		return strconv.Itoa(modifiedJulianDay(t)), nil
	case DatePartHour:
		return fmt.Sprintf("%02d", t.Hour()), nil
	case DatePartMinute:
		return fmt.Sprintf("%02d", t.Minute()), nil
	case DatePartSecond:
		return fmt.Sprintf("%02d", t.Second()), nil
	case DatePartTime:
		return t.Format("15:04:05"), nil
	case DatePartISO8601:
		return t.Format("2006-01-02T15:04:05-07:00"), nil
	case DatePartStd11:
		return t.Format(time.RFC1123Z), nil
	case DatePartZone:
		return t.Format("-0700"), nil
	case DatePartWeekday:
		// 0 = Sunday, 6 = Saturday.
		return strconv.Itoa(int(t.Weekday())), nil
	default:
		return "", fmt.Errorf("unknown date-part: %s", part)
	}
}

// modifiedJulianDay is the number of days since November 17, 1858 00:00 UTC
// (Julian Day minus 2400000.5).
func modifiedJulianDay(t time.Time) int {
	year := t.Year()
	month := int(t.Month())
	day := t.Day()

	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3

	jdn := day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
	return jdn - 2400001
}

func parseZoneOffset(zone string) (int, error) {
	if len(zone) != 5 {
		return 0, fmt.Errorf("invalid zone format: %s", zone)
	}
	sign := 1
	if zone[0] == '-' {
		sign = -1
	} else if zone[0] != '+' {
		return 0, fmt.Errorf("invalid zone format: %s", zone)
	}
	hours, err := strconv.Atoi(zone[1:3])
	if err != nil {
		return 0, fmt.Errorf("invalid zone hours: %s", zone)
	}
	minutes, err := strconv.Atoi(zone[3:5])
	if err != nil {
		return 0, fmt.Errorf("invalid zone minutes: %s", zone)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// parseDateHeader accepts the RFC 5322 date plus a handful of common
// variants seen in real mail.
func parseDateHeader(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, nil
	}
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 MST",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// TestDate extracts a date-time from a header field and compares one
// date-part against the keys.
type TestDate struct {
	Matcher      Matcher
	Header       StringItem
	DatePart     StringItem
	Zone         *StringItem
	OriginalZone bool
	Index        int32
	Last         bool
	IsNot        bool
}

func (t TestDate) exec(c *Context) TestResult {
	values := c.headerWithEdits(0, c.evalString(t.Header))

	if t.Matcher.IsCount() {
		var valid uint64
		for _, value := range values {
			if _, err := parseDateHeader(value); err == nil {
				valid++
			}
		}
		return boolResult(c.countMatches(t.Matcher, valid), t.IsNot)
	}

	values = selectIndexed(values, t.Index, t.Last)
	if len(values) == 0 {
		return boolResult(false, t.IsNot)
	}
	when, err := parseDateHeader(values[0])
	if err != nil {
		return boolResult(false, t.IsNot)
	}
	when = applyZone(when, t.OriginalZone, c.evalOptString(t.Zone))

	part := DatePart(strings.ToLower(c.evalString(t.DatePart)))
	partValue, err := extractDatePart(when, part)
	if err != nil {
		return TestResult{Err: runtimeErr(IllegalAction, err.Error())}
	}
	ok, err := c.tryMatch(t.Matcher, partValue)
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(ok, t.IsNot)
}

// TestCurrentDate compares a date-part of the current time.
type TestCurrentDate struct {
	Matcher  Matcher
	DatePart StringItem
	Zone     *StringItem
	IsNot    bool
}

func (t TestCurrentDate) exec(c *Context) TestResult {
	when := applyZone(time.Now(), false, c.evalOptString(t.Zone))
	part := DatePart(strings.ToLower(c.evalString(t.DatePart)))
	partValue, err := extractDatePart(when, part)
	if err != nil {
		return TestResult{Err: runtimeErr(IllegalAction, err.Error())}
	}
	ok, err := c.tryMatch(t.Matcher, partValue)
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(ok, t.IsNot)
}

func applyZone(t time.Time, original bool, zone string) time.Time {
	if original {
		return t
	}
	if zone != "" {
		if offset, err := parseZoneOffset(zone); err == nil {
			return t.In(time.FixedZone("", offset))
		}
	}
	return t.Local()
}
