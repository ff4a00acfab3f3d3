package store

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/errors"
)

// 合成数据维度
var (
	syntheticStates = []string{
		"Punjab", "Haryana", "Uttar Pradesh", "Maharashtra", "West Bengal",
		"Madhya Pradesh", "Karnataka", "Tamil Nadu", "Andhra Pradesh", "Gujarat",
	}
	syntheticCrops = []string{
		"Rice", "Wheat", "Maize", "Jowar", "Bajra", "Cotton", "Sugarcane",
		"Groundnut", "Soybean", "Pulses",
	}
	monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

	cereals = map[string]bool{"Rice": true, "Wheat": true, "Maize": true, "Jowar": true, "Bajra": true}
	kharif  = map[string]bool{"Rice": true, "Maize": true, "Cotton": true}
	staples = map[string]bool{"Rice": true, "Wheat": true}
	monsoon = map[string]bool{"Jun": true, "Jul": true, "Aug": true, "Sep": true}
)

const (
	firstYear = 2013
	lastYear  = 2023
)

// seed hashes s with FNV-1a and reduces it modulo n.
func seed(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

// Synthesize builds the deterministic stand-in table for a catalog dataset.
// The same key always yields the same rows.
func Synthesize(key string) (*model.Table, error) {
	switch key {
	case catalog.CropProduction:
		return syntheticCropProduction(), nil
	case catalog.AreaProduction:
		return syntheticAreaProduction(), nil
	case catalog.RainfallData:
		return syntheticRainfall(), nil
	case catalog.ClimateData:
		return syntheticClimate(), nil
	case catalog.AgriPrices:
		return syntheticPrices(), nil
	default:
		return nil, errors.ErrUnknownDataset.WithMessagef("Unknown dataset: %s", key)
	}
}

func syntheticCropProduction() *model.Table {
	t := &model.Table{
		Columns: []string{"State", "District", "Crop", "Crop_Type", "Year", "Season", "Area", "Production", "Yield"},
	}
	for _, state := range syntheticStates {
		for _, crop := range syntheticCrops {
			for year := firstYear; year <= lastYear; year++ {
				base := 500
				if staples[crop] {
					base = 1000
				}
				variation := seed(fmt.Sprintf("%s%s%d", state, crop, year), 500) - 250

				cropType := "Cash Crop"
				if cereals[crop] {
					cropType = "Cereal"
				}
				season := "Rabi"
				if kharif[crop] {
					season = "Kharif"
				}

				t.Rows = append(t.Rows, model.Row{
					"State":      state,
					"District":   fmt.Sprintf("%s_District_%d", state, seed(state+crop, 5)+1),
					"Crop":       crop,
					"Crop_Type":  cropType,
					"Year":       year,
					"Season":     season,
					"Area":       math.Abs(float64(base*2 + variation)),
					"Production": math.Abs(float64(base + variation)),
					"Yield":      math.Abs(2.5 + float64(variation)/200),
				})
			}
		}
	}
	return t
}

// syntheticAreaProduction groups crop production by state, crop, year and
// crop type, summing area and production, sorted by the group key.
func syntheticAreaProduction() *model.Table {
	type groupKey struct {
		state, crop string
		year        int
		cropType    string
	}
	type sums struct{ area, production float64 }

	groups := make(map[groupKey]*sums)
	for _, r := range syntheticCropProduction().Rows {
		k := groupKey{r["State"].(string), r["Crop"].(string), r["Year"].(int), r["Crop_Type"].(string)}
		s, ok := groups[k]
		if !ok {
			s = &sums{}
			groups[k] = s
		}
		s.area += r["Area"].(float64)
		s.production += r["Production"].(float64)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.state != b.state {
			return a.state < b.state
		}
		if a.crop != b.crop {
			return a.crop < b.crop
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.cropType < b.cropType
	})

	t := &model.Table{Columns: []string{"State", "Crop", "Year", "Crop_Type", "Area", "Production"}}
	for _, k := range keys {
		s := groups[k]
		t.Rows = append(t.Rows, model.Row{
			"State":      k.state,
			"Crop":       k.crop,
			"Year":       k.year,
			"Crop_Type":  k.cropType,
			"Area":       s.area,
			"Production": s.production,
		})
	}
	return t
}

func syntheticRainfall() *model.Table {
	t := &model.Table{Columns: []string{"State", "Year", "Month", "Rainfall_mm", "District"}}
	for _, state := range syntheticStates {
		for year := firstYear; year <= lastYear; year++ {
			for _, month := range monthNames {
				base := 30
				if monsoon[month] {
					base = 200
				}
				variation := seed(fmt.Sprintf("%s%d%s", state, year, month), 100) - 50
				rain := base + variation
				if rain < 0 {
					rain = 0
				}
				t.Rows = append(t.Rows, model.Row{
					"State":       state,
					"Year":        year,
					"Month":       month,
					"Rainfall_mm": rain,
					"District":    state + "_District_Central",
				})
			}
		}
	}
	return t
}

func syntheticClimate() *model.Table {
	t := &model.Table{
		Columns: []string{"State", "Year", "Month", "Max_Temperature", "Min_Temperature", "Avg_Temperature"},
	}
	for _, state := range syntheticStates[:5] {
		for year := firstYear; year <= lastYear; year++ {
			for month := 1; month <= 12; month++ {
				base := 25 + 10*math.Abs(float64(month)-6.5)/6.5
				variation := float64(seed(fmt.Sprintf("%s%d%d", state, year, month), 10) - 5)
				t.Rows = append(t.Rows, model.Row{
					"State":           state,
					"Year":            year,
					"Month":           month,
					"Max_Temperature": base + 5 + variation,
					"Min_Temperature": base - 5 + variation,
					"Avg_Temperature": base + variation,
				})
			}
		}
	}
	return t
}

func syntheticPrices() *model.Table {
	crops := []string{"Rice", "Wheat", "Maize", "Cotton", "Sugarcane"}
	states := []string{"Punjab", "Haryana", "Maharashtra", "Uttar Pradesh"}

	t := &model.Table{Columns: []string{"Crop", "State", "Year", "Month", "Price_per_Quintal"}}
	for _, crop := range crops {
		base := 1500
		if staples[crop] {
			base = 2000
		}
		for _, state := range states {
			for year := firstYear; year <= lastYear; year++ {
				for month := 1; month <= 12; month++ {
					variation := seed(fmt.Sprintf("%s%s%d%d", crop, state, year, month), 500) - 250
					t.Rows = append(t.Rows, model.Row{
						"Crop":              crop,
						"State":             state,
						"Year":              year,
						"Month":             month,
						"Price_per_Quintal": base + variation + (year-firstYear)*100,
					})
				}
			}
		}
	}
	return t
}
