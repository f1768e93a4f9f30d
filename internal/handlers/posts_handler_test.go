package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name      string
		pageStr   string
		limitStr  string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", "", 1, 10},
		{"explicit", "3", "25", 3, 25},
		{"zero page", "0", "10", 1, 10},
		{"negative page", "-2", "10", 1, 10},
		{"limit above max", "1", "500", 1, 50},
		{"garbage", "abc", "xyz", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := ParsePageParams(tt.pageStr, tt.limitStr)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
