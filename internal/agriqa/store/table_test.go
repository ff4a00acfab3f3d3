package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/agriqa/internal/model"
)

func sampleTable() *model.Table {
	return &model.Table{
		Columns: []string{"State", "Crop", "Year", "Production"},
		Rows: []model.Row{
			{"State": "Punjab", "Crop": "Rice", "Year": 2015, "Production": 1200.0},
			{"State": "Punjab", "Crop": "Wheat", "Year": 2016.0, "Production": 1500.0},
			{"State": "Haryana", "Crop": "Rice", "Year": "2015", "Production": 900.0},
			{"State": "Kerala", "Crop": "Rice", "Year": nil, "Production": 300.0},
		},
	}
}

func TestFilterTable(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		limit   int
		offset  int
		want    int
	}{
		{"no filters", nil, 0, 0, 4},
		{"scalar equality", Filters{"State": "Punjab"}, 0, 0, 2},
		{"text is case sensitive", Filters{"State": "punjab"}, 0, 0, 0},
		{"null membership", Filters{"Year": []interface{}{nil, 2016}}, 0, 0, 2},
		{"membership", Filters{"State": []string{"Punjab", "Haryana"}}, 0, 0, 3},
		{"numeric equality across types", Filters{"Year": 2015}, 0, 0, 2},
		{"numeric string filter", Filters{"Year": "2016"}, 0, 0, 1},
		{"year list", Filters{"Year": []int{2015, 2016}}, 0, 0, 3},
		{"typed years", Filters{"Year": []model.Year{2016}}, 0, 0, 1},
		{"absent column ignored", Filters{"District": "X", "Crop": "Rice"}, 0, 0, 3},
		{"combined", Filters{"State": "Punjab", "Crop": "Rice"}, 0, 0, 1},
		{"limit", Filters{"Crop": "Rice"}, 2, 0, 2},
		{"offset", Filters{"Crop": "Rice"}, 0, 2, 1},
		{"no match", Filters{"State": "Goa"}, 0, 0, 0},
		{"empty membership", Filters{"State": []string{}}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTable(sampleTable(), tt.filters, tt.limit, tt.offset)
			assert.Equal(t, tt.want, got.Len())
			assert.Equal(t, sampleTable().Columns, got.Columns)
		})
	}
}

func TestFilterTable_Nil(t *testing.T) {
	assert.Equal(t, 0, FilterTable(nil, Filters{"a": 1}, 10, 0).Len())
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(2015, "2015"))
	assert.True(t, ValuesEqual(2015.0, 2015))
	assert.False(t, ValuesEqual("Rice", "RICE"))
	assert.False(t, ValuesEqual("Rice", " Rice"))
	assert.True(t, ValuesEqual("Rice", "Rice"))
	assert.False(t, ValuesEqual("Rice", "Wheat"))
	assert.False(t, ValuesEqual(nil, "x"))
	assert.True(t, ValuesEqual(nil, nil))
}

func TestValueSet_AgreesWithValuesEqual(t *testing.T) {
	wants := []interface{}{2015, "2016", "Rice", nil, "n/a"}
	cells := []interface{}{2015.0, "2015", 2016, "Rice", "rice", nil, "n/a", 7, "x"}

	set := newValueSet(wants)
	for _, cell := range cells {
		expected := false
		for _, w := range wants {
			if ValuesEqual(cell, w) {
				expected = true
				break
			}
		}
		assert.Equal(t, expected, set.contains(cell), "cell %v", cell)
	}
}

func TestFilterTable_LargeMembership(t *testing.T) {
	years := make([]int, 0, 100000)
	for y := 1; y <= 100000; y++ {
		years = append(years, y)
	}
	got := FilterTable(sampleTable(), Filters{"Year": years}, 0, 0)
	assert.Equal(t, 3, got.Len())
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat(" 12.5 ")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = ToFloat("Punjab")
	assert.False(t, ok)
	_, ok = ToFloat("inf")
	assert.False(t, ok)
	_, ok = ToFloat(true)
	assert.False(t, ok)

	f, ok = ToFloat(model.Year(2020))
	assert.True(t, ok)
	assert.Equal(t, 2020.0, f)
}
