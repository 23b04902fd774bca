package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: DefaultLimit},
		{name: "negative page clamps to 1", page: -3, limit: 10, wantPage: 1, wantLimit: 10},
		{name: "limit capped", page: 2, limit: 1000, wantPage: 2, wantLimit: MaxLimit},
		{name: "valid values pass through", page: 3, limit: 25, wantPage: 3, wantLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := NormalizePage(tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
