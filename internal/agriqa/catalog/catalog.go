// Package catalog holds the fixed set of datasets agriqa can answer from.
package catalog

import (
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/errors"
)

// 数据集键
const (
	CropProduction = "crop_production"
	AreaProduction = "area_production"
	RainfallData   = "rainfall_data"
	ClimateData    = "climate_data"
	AgriPrices     = "agri_prices"
)

var descriptors = []model.Descriptor{
	{
		Key:         CropProduction,
		ExternalID:  "9ef84268-d588-465a-a308-a864a43d0070",
		Name:        "Crop Production Statistics",
		URL:         "https://data.gov.in/resource/crop-production-statistics",
		Category:    model.CategoryAgriculture,
		Description: "District-wise crop production data across India",
	},
	{
		Key:         AreaProduction,
		ExternalID:  "d9d2d2d8-8f8a-4f8a-8f8a-8f8a8f8a8f8a",
		Name:        "Area and Production of Crops",
		URL:         "https://data.gov.in/resource/area-production-crops",
		Category:    model.CategoryAgriculture,
		Description: "State-wise area and production statistics for various crops",
	},
	{
		Key:         RainfallData,
		ExternalID:  "rainfall-subdivision-1901-2017",
		Name:        "Rainfall Data (IMD)",
		URL:         "https://data.gov.in/resource/rainfall-data-imd",
		Category:    model.CategoryClimate,
		Description: "Monthly rainfall data from India Meteorological Department",
	},
	{
		Key:         ClimateData,
		ExternalID:  "climate-temperature-data",
		Name:        "Temperature Data (IMD)",
		URL:         "https://data.gov.in/resource/climate-data-imd",
		Category:    model.CategoryClimate,
		Description: "Temperature and climate indicators",
	},
	{
		Key:         AgriPrices,
		ExternalID:  "agricultural-prices",
		Name:        "Agricultural Commodity Prices",
		URL:         "https://data.gov.in/resource/agricultural-prices",
		Category:    model.CategoryAgriculture,
		Description: "Market prices for agricultural commodities",
	},
}

var byKey = func() map[string]int {
	m := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		m[d.Key] = i
	}
	return m
}()

// All returns every descriptor in catalog order.
func All() []model.Descriptor {
	out := make([]model.Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Keys returns the dataset keys in catalog order.
func Keys() []string {
	keys := make([]string, len(descriptors))
	for i, d := range descriptors {
		keys[i] = d.Key
	}
	return keys
}

// Has reports whether key names a catalog dataset.
func Has(key string) bool {
	_, ok := byKey[key]
	return ok
}

// Get returns the descriptor for key or ErrUnknownDataset.
func Get(key string) (model.Descriptor, error) {
	i, ok := byKey[key]
	if !ok {
		return model.Descriptor{}, errors.ErrUnknownDataset.WithMessagef("Unknown dataset: %s", key)
	}
	return descriptors[i], nil
}

// ByCategory returns descriptors of one category; an empty category returns all.
func ByCategory(category string) []model.Descriptor {
	if category == "" {
		return All()
	}
	var out []model.Descriptor
	for _, d := range descriptors {
		if string(d.Category) == category {
			out = append(out, d)
		}
	}
	return out
}
