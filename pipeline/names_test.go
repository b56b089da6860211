package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"critcss/coverage"
)

func TestFilter_Match(t *testing.T) {
	res := coverage.NewStyleResource("https://cdn.example.com/static/css/app.min.css?v=42", "", false, 0)
	inline := coverage.NewStyleResource("https://example.com/", "", true, 1)

	tests := []struct {
		filter Filter
		res    coverage.StyleResource
		want   bool
	}{
		{"", res, true},
		{"app.min.css", res, true},
		{"static/css", res, true},
		{"vendor.css", res, false},
		{"*.min.css", res, true},
		{"app.{min,dev}.css", res, true},
		{"static/**/*.css", res, true},
		{"/static/css/*.css", res, true},
		{"fonts/**", res, false},
		{"inline*.css", inline, true},
		{"inline.css", inline, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.res))
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter("").Validate())
	assert.NoError(t, Filter("**/*.css").Validate())
	assert.Error(t, Filter("[a-").Validate())
}

func TestExpandUsedName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		field  string
		filter Filter
		want   string
	}{
		{"used-{{ .Filter }}-{{ .Stamp }}.css", "main.css", "used-main-css-1700000000123.css"},
		{"used-{{ .Filter }}-{{ .Stamp }}.css", "", "used-all-1700000000123.css"},
		{"{{ .Filter | upper }}", "theme", "THEME.css"},
		{"a/b-{{ .Stamp }}.css", "x", "ab-1700000000123.css"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := expandUsedName(tt.field, tt.filter, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := expandUsedName("{{ .Unknown", "", now)
	assert.Error(t, err)
}
