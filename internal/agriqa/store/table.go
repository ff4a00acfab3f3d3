package store

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/kart-io/agriqa/internal/model"
)

// Filters maps a column name to the wanted value. A slice value means
// membership, anything else means equality.
type Filters map[string]interface{}

// FilterTable applies filters and then returns rows [offset, offset+limit).
// Filters on columns the table does not have are ignored. A limit <= 0
// means no limit.
func FilterTable(t *model.Table, filters Filters, limit, offset int) *model.Table {
	if t == nil {
		return &model.Table{}
	}
	out := &model.Table{Columns: append([]string(nil), t.Columns...)}

	active := make(map[string]*valueSet, len(filters))
	for col, want := range filters {
		if !t.HasColumn(col) {
			continue
		}
		active[col] = newValueSet(candidates(want))
	}

	skipped := 0
	for _, row := range t.Rows {
		if !rowMatches(row, active) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out.Rows = append(out.Rows, row)
		if limit > 0 && len(out.Rows) >= limit {
			break
		}
	}
	return out
}

func rowMatches(row model.Row, active map[string]*valueSet) bool {
	for col, set := range active {
		if !set.contains(row[col]) {
			return false
		}
	}
	return true
}

// valueSet is the accepted values of one filter, indexed so a lookup costs
// the same however many values the filter lists.
type valueSet struct {
	null bool
	nums map[float64]struct{}
	// text holds every non-nil value; plain holds the non-numeric ones only.
	text  map[string]struct{}
	plain map[string]struct{}
}

func newValueSet(wants []interface{}) *valueSet {
	s := &valueSet{
		nums:  make(map[float64]struct{}),
		text:  make(map[string]struct{}, len(wants)),
		plain: make(map[string]struct{}),
	}
	for _, w := range wants {
		if w == nil {
			s.null = true
			continue
		}
		str := fmt.Sprint(w)
		s.text[str] = struct{}{}
		if f, ok := ToFloat(w); ok {
			s.nums[f] = struct{}{}
		} else {
			s.plain[str] = struct{}{}
		}
	}
	return s
}

// contains agrees with ValuesEqual against every value of the set.
func (s *valueSet) contains(cell interface{}) bool {
	if cell == nil {
		return s.null
	}
	str := fmt.Sprint(cell)
	if f, ok := ToFloat(cell); ok {
		if _, hit := s.nums[f]; hit {
			return true
		}
		_, hit := s.plain[str]
		return hit
	}
	_, hit := s.text[str]
	return hit
}

// candidates flattens a filter value into the accepted values.
func candidates(want interface{}) []interface{} {
	if want == nil {
		return []interface{}{nil}
	}
	v := reflect.ValueOf(want)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return []interface{}{want}
	}
	if _, isBytes := want.([]byte); isBytes {
		return []interface{}{string(want.([]byte))}
	}
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out
}

// ValuesEqual compares a cell with a filter value. Numbers compare
// numerically, so 2015, "2015" and 2015.0 are equal; everything else
// must match exactly as text.
func ValuesEqual(cell, want interface{}) bool {
	if cell == nil || want == nil {
		return cell == nil && want == nil
	}
	if a, ok := ToFloat(cell); ok {
		if b, ok := ToFloat(want); ok {
			return a == b
		}
	}
	return fmt.Sprint(cell) == fmt.Sprint(want)
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case model.Year:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
