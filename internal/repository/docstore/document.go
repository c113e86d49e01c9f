package docstore

import "math"

// Document is a snapshot of a stored document.
type Document struct {
	Key      string
	Fields   map[string]interface{}
	Revision string
}

// Int returns the named field as an integer. Missing or non-numeric fields read as zero.
func (d Document) Int(name string) int64 {
	switch v := d.Fields[name].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(math.Round(v))
	case Increment:
		return int64(v)
	default:
		return 0
	}
}

// Float returns the named field as a double.
func (d Document) Float(name string) float64 {
	switch v := d.Fields[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// String returns the named field as a string.
func (d Document) String(name string) string {
	if v, ok := d.Fields[name].(string); ok {
		return v
	}
	return ""
}
