// Package codec decodes raw topic records into rows according to a
// virtual table's schema and pulls typed values back out of them.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Event-time units.
const (
	UnitSeconds = "seconds"
	UnitMillis  = "millis"
	UnitMicros  = "micros"
	UnitISO8601 = "iso8601"
)

// Row is one decoded record. Numbers are json.Number so long timestamps
// survive the trip without float truncation.
type Row map[string]any

// Decoder decodes JSON records and extracts their event time.
type Decoder struct {
	timeColumn string
	unit       string
}

func NewDecoder(timeColumn, unit string) (*Decoder, error) {
	if timeColumn == "" {
		return nil, fmt.Errorf("codec: event-time column required")
	}
	switch unit {
	case UnitSeconds, UnitMillis, UnitMicros, UnitISO8601:
	case "":
		unit = UnitMillis
	default:
		return nil, fmt.Errorf("codec: unknown event-time unit %q", unit)
	}
	return &Decoder{timeColumn: timeColumn, unit: unit}, nil
}

func (d *Decoder) Decode(b []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("codec: decode record: %w", err)
	}
	return row, nil
}

func (d *Decoder) EventTime(row Row) (time.Time, error) {
	v, ok := row[d.timeColumn]
	if !ok {
		return time.Time{}, fmt.Errorf("codec: record has no %q column", d.timeColumn)
	}
	if d.unit == UnitISO8601 {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, fmt.Errorf("codec: %q is not a string timestamp", d.timeColumn)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("codec: parse %q: %w", d.timeColumn, err)
		}
		return t, nil
	}

	n, ok := v.(json.Number)
	if !ok {
		return time.Time{}, fmt.Errorf("codec: %q is not numeric", d.timeColumn)
	}
	i, err := n.Int64()
	if err != nil {
		return time.Time{}, fmt.Errorf("codec: parse %q: %w", d.timeColumn, err)
	}
	switch d.unit {
	case UnitSeconds:
		return time.Unix(i, 0).UTC(), nil
	case UnitMicros:
		return time.UnixMicro(i).UTC(), nil
	default:
		return time.UnixMilli(i).UTC(), nil
	}
}

// Number returns a column as float64.
func Number(row Row, col string) (float64, error) {
	v, ok := row[col]
	if !ok {
		return 0, fmt.Errorf("codec: record has no %q column", col)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("codec: %q is not numeric", col)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("codec: parse %q: %w", col, err)
	}
	return f, nil
}

// Text renders a column as the string form used for group keys.
func Text(row Row, col string) (string, error) {
	v, ok := row[col]
	if !ok {
		return "", fmt.Errorf("codec: record has no %q column", col)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("codec: render %q: %w", col, err)
		}
		return string(b), nil
	}
}

// Project re-encodes a subset of the row's columns. Missing columns are
// an error so schema typos surface immediately.
func Project(row Row, cols []string) ([]byte, error) {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		v, ok := row[c]
		if !ok {
			return nil, fmt.Errorf("codec: record has no %q column", c)
		}
		out[c] = v
	}
	return json.Marshal(out)
}
