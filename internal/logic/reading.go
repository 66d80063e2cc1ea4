package logic

import (
	"errors"
	"fmt"
	"time"
)

// TimeLayout is the device's local timestamp format.
const TimeLayout = "2006-01-02T15:04:05"

var (
	ErrMissingTimestamp   = errors.New("missing timestamp")
	ErrBadTimestamp       = errors.New("unparseable timestamp")
	ErrMissingTemperature = errors.New("missing temperature")
	ErrMissingHumidity    = errors.New("missing humidity")
)

// NewReading validates raw telemetry fields and builds a Reading.
// Nil pointers mean the field was absent from the payload. The timestamp
// carries no zone and is interpreted in loc (UTC if nil).
func NewReading(timestamp string, temperature, humidity *float64, loc *time.Location) (Reading, error) {
	if timestamp == "" {
		return Reading{}, ErrMissingTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}
	ts, err := time.ParseInLocation(TimeLayout, timestamp, loc)
	if err != nil {
		return Reading{}, fmt.Errorf("%w %q: %v", ErrBadTimestamp, timestamp, err)
	}
	if temperature == nil {
		return Reading{}, ErrMissingTemperature
	}
	if humidity == nil {
		return Reading{}, ErrMissingHumidity
	}
	return Reading{
		Timestamp:   ts,
		Temperature: *temperature,
		Humidity:    *humidity,
	}, nil
}
