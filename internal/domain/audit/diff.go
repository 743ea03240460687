package audit

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// State is a flat, field-name keyed view of an entity
type State map[string]any

// Change records a non-numeric field going from Old to New
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps a field name to a json.Number delta for numeric fields or a
// Change for anything else. Unchanged fields are absent.
type Diff map[string]any

// Fields returns the changed field names in sorted order
func (d Diff) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Delta returns the numeric delta recorded for field
func (d Diff) Delta(field string) (decimal.Decimal, bool) {
	n, ok := d[field].(json.Number)
	if !ok {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// timestamps are rewritten by every save and carry no business meaning
var volatileFields = map[string]struct{}{
	"created_at": {},
	"updated_at": {},
}

// ComputeDiff compares two states field by field
func ComputeDiff(before, after State) Diff {
	diff := Diff{}
	for _, k := range unionKeys(before, after) {
		if _, skip := volatileFields[k]; skip {
			continue
		}
		o, n := before[k], after[k]
		if o == nil && n == nil {
			continue
		}
		od, oNum := toDecimal(o)
		nd, nNum := toDecimal(n)
		if oNum && nNum {
			if !od.Equal(nd) {
				diff[k] = json.Number(nd.Sub(od).String())
			}
			continue
		}
		if !reflect.DeepEqual(o, n) {
			diff[k] = Change{Old: o, New: n}
		}
	}
	return diff
}

func unionKeys(a, b State) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint64:
		return decimal.NewFromUint64(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	}
	return decimal.Zero, false
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// StateOf flattens a struct (embedded structs included) into a State keyed
// by json field names. Decimals stay numeric; times become RFC 3339 text.
func StateOf(v any) State {
	if v == nil {
		return nil
	}
	if st, ok := v.(State); ok {
		return st
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	st := State{}
	flatten(rv, st)
	return st
}

func flatten(rv reflect.Value, st State) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != decimalType && f.Type != timeType {
			flatten(fv, st)
			continue
		}
		name := fieldName(f)
		if name == "-" {
			continue
		}
		st[name] = plainValue(fv)
	}
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func plainValue(fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	switch x := fv.Interface().(type) {
	case decimal.Decimal:
		return x
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.UTC().Format(time.RFC3339)
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fv.Uint()
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	case reflect.Bool:
		return fv.Bool()
	}
	return fv.Interface()
}
