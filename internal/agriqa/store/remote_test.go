package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
)

func TestDataGovSource_Records(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/rainfall-subdivision-1901-2017", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"State":"Punjab","Year":2015},{"State":"Goa","Rainfall_mm":12.5}]}`))
	}))
	defer srv.Close()

	src := NewDataGovSource(srv.URL+"/resource/", "secret", 25, time.Second, 0)
	desc, _ := catalog.Get(catalog.RainfallData)
	tbl, err := src.Fetch(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Rainfall_mm", "State", "Year"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 2015.0, tbl.Rows[0]["Year"])
}

func TestDataGovSource_BareList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("api-key"))
		_, _ = w.Write([]byte(`[{"Crop":"Rice"}]`))
	}))
	defer srv.Close()

	src := NewDataGovSource(srv.URL, "", 10, time.Second, 0)
	desc, _ := catalog.Get(catalog.AgriPrices)
	tbl, err := src.Fetch(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestDataGovSource_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `{}`},
		{"forbidden", http.StatusForbidden, `{"message":"invalid key"}`},
		{"wrong shape", http.StatusOK, `{"data":[]}`},
		{"scalar payload", http.StatusOK, `42`},
		{"empty records", http.StatusOK, `{"records":[]}`},
		{"non-object record", http.StatusOK, `[1,2]`},
		{"malformed json", http.StatusOK, `{"records":`},
	}

	desc, _ := catalog.Get(catalog.CropProduction)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := NewDataGovSource(srv.URL, "", 10, time.Second, 0)
			_, err := src.Fetch(context.Background(), desc)
			require.Error(t, err)
			assert.True(t, apierrors.IsCode(err, apierrors.ErrRemoteFetch.Code))
			assert.Contains(t, err.Error(), catalog.CropProduction)
		})
	}
}

func TestDataGovSource_FormatErrorsUnwrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	desc, _ := catalog.Get(catalog.ClimateData)
	_, err := NewDataGovSource(srv.URL, "", 10, time.Second, 0).Fetch(context.Background(), desc)
	assert.ErrorIs(t, err, ErrRemoteFormat)
}
