package biz

import (
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/kart-io/agriqa/internal/model"
)

// SummaryOptions controls how a large table is reduced for synthesis.
type SummaryOptions struct {
	// IncludeCrop 是否按 Crop 分组（问题提到作物时）。
	IncludeCrop bool
	// MaxRows 汇总结果行数上限。
	MaxRows int
	// SampleRows 无法汇总时的抽样行数。
	SampleRows int
	// Seed 抽样种子。
	Seed string
}

type aggregate struct {
	sum   float64
	count int
}

type group struct {
	keys []interface{}
	aggs []aggregate
}

// Summarize groups rows by State, Crop and Year (those present) and returns
// mean, sum and count of every numeric column per group, in group key
// order. When no grouping column or numeric column exists it returns a
// seeded sample instead.
func Summarize(t *model.Table, opts SummaryOptions) []model.Row {
	if t.Len() == 0 {
		return []model.Row{}
	}

	var groupBy []string
	if t.HasColumn("State") {
		groupBy = append(groupBy, "State")
	}
	if opts.IncludeCrop && t.HasColumn("Crop") {
		groupBy = append(groupBy, "Crop")
	}
	if t.HasColumn("Year") {
		groupBy = append(groupBy, "Year")
	}

	if len(groupBy) > 0 {
		if numeric := numericColumns(t, groupBy); len(numeric) > 0 {
			if rows := groupAggregate(t, groupBy, numeric, opts.MaxRows); len(rows) > 0 {
				return rows
			}
		}
	}
	return SampleRows(t, opts.SampleRows, opts.Seed)
}

// numericColumns returns the non-group columns whose non-null values are
// all numbers.
func numericColumns(t *model.Table, groupBy []string) []string {
	skip := make(map[string]bool, len(groupBy))
	for _, g := range groupBy {
		skip[g] = true
	}

	var out []string
	for _, col := range t.Columns {
		if skip[col] {
			continue
		}
		seen := false
		numeric := true
		for _, row := range t.Rows {
			v := row[col]
			if v == nil {
				continue
			}
			if _, ok := asNumber(v); !ok {
				numeric = false
				break
			}
			seen = true
		}
		if numeric && seen {
			out = append(out, col)
		}
	}
	return out
}

func groupAggregate(t *model.Table, groupBy, numeric []string, maxRows int) []model.Row {
	groups := make(map[string]*group)
	var order []*group

rows:
	for _, row := range t.Rows {
		keys := make([]interface{}, len(groupBy))
		parts := make([]string, len(groupBy))
		for i, col := range groupBy {
			v := row[col]
			if v == nil {
				continue rows
			}
			keys[i] = v
			parts[i] = formatValue(v)
		}
		id := strings.Join(parts, "\x00")

		g, ok := groups[id]
		if !ok {
			g = &group{keys: keys, aggs: make([]aggregate, len(numeric))}
			groups[id] = g
			order = append(order, g)
		}
		for i, col := range numeric {
			if f, ok := asNumber(row[col]); ok {
				g.aggs[i].sum += f
				g.aggs[i].count++
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		for k := range groupBy {
			if c := compareValues(order[i].keys[k], order[j].keys[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	if maxRows > 0 && len(order) > maxRows {
		order = order[:maxRows]
	}

	out := make([]model.Row, 0, len(order))
	for _, g := range order {
		r := make(model.Row, len(groupBy)+3*len(numeric))
		for i, col := range groupBy {
			r[col] = g.keys[i]
		}
		for i, col := range numeric {
			a := g.aggs[i]
			var mean interface{}
			if a.count > 0 {
				mean = a.sum / float64(a.count)
			}
			r[col+"_mean"] = mean
			r[col+"_sum"] = a.sum
			r[col+"_count"] = a.count
		}
		out = append(out, r)
	}
	return out
}

// SampleRows returns at most n rows chosen with a generator seeded by seed,
// kept in table order.
func SampleRows(t *model.Table, n int, seed string) []model.Row {
	total := t.Len()
	if n <= 0 || total == 0 {
		return []model.Row{}
	}
	if n >= total {
		return append([]model.Row(nil), t.Rows...)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(total)))

	picked := rng.Perm(total)[:n]
	sort.Ints(picked)

	out := make([]model.Row, n)
	for i, idx := range picked {
		out[i] = t.Rows[idx]
	}
	return out
}

// asNumber accepts numeric Go values only; numeric strings are text.
func asNumber(v interface{}) (float64, bool) {
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
	}
	return 0, false
}

func compareValues(a, b interface{}) int {
	fa, aok := asNumber(a)
	fb, bok := asNumber(b)
	switch {
	case aok && bok:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(formatValue(a), formatValue(b))
}
