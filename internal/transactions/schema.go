package transactions

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// FieldKind is the type a body field must have.
type FieldKind int

const (
	String FieldKind = iota
	Number           // JSON integer or float
	UUID             // string holding a UUID
)

func (k FieldKind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case UUID:
		return "uuid"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Schema lists the exact keys a JSON object body must have.
type Schema map[string]FieldKind

var (
	createSchema = Schema{
		"description":              String,
		"type":                     String,
		"value":                    Number,
		"currency_symbol":          String,
		"currency_conversion_rate": Number,
	}
	shareSchema = Schema{
		"account_id": UUID,
		"value":      Number,
	}
	deleteShareSchema = Schema{
		"account_id": UUID,
	}
)

// Body is a validated request body.
type Body struct {
	strings map[string]string
	numbers map[string]float64
	uuids   map[string]uuid.UUID
}

func (b Body) Text(key string) string    { return b.strings[key] }
func (b Body) Number(key string) float64 { return b.numbers[key] }
func (b Body) ID(key string) uuid.UUID   { return b.uuids[key] }

// Validate checks that raw has exactly the schema's keys, each of the
// declared kind. Errors name the first offending key in sorted order.
func (s Schema) Validate(raw map[string]any) (Body, error) {
	b := Body{
		strings: map[string]string{},
		numbers: map[string]float64{},
		uuids:   map[string]uuid.UUID{},
	}

	for _, key := range sortedKeys(raw) {
		if _, ok := s[key]; !ok {
			return Body{}, fmt.Errorf("unexpected key %q", key)
		}
	}

	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			return Body{}, fmt.Errorf("missing key %q", key)
		}

		kind := s[key]
		switch kind {
		case String:
			str, ok := v.(string)
			if !ok {
				return Body{}, fmt.Errorf("key %q must be a %s", key, kind)
			}
			b.strings[key] = str
		case Number:
			f, ok := v.(float64)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return Body{}, fmt.Errorf("key %q must be a %s", key, kind)
			}
			b.numbers[key] = f
		case UUID:
			str, ok := v.(string)
			if !ok {
				return Body{}, fmt.Errorf("key %q must be a %s", key, kind)
			}
			id, err := uuid.Parse(str)
			if err != nil {
				return Body{}, fmt.Errorf("key %q must be a %s", key, kind)
			}
			b.uuids[key] = id
		}
	}
	return b, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
