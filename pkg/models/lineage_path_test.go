package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshState_PathsStale(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	earlier := base.Add(-time.Hour)
	later := base.Add(time.Hour)

	tests := []struct {
		name  string
		state RefreshState
		want  bool
	}{
		{"no edge writes ever", RefreshState{}, false},
		{"no writes but refreshed", RefreshState{PathsRefreshedAt: &base}, false},
		{"written but never refreshed", RefreshState{LastEdgeWriteAt: &base}, true},
		{"refreshed before last write", RefreshState{PathsRefreshedAt: &earlier, LastEdgeWriteAt: &base}, true},
		{"refreshed after last write", RefreshState{PathsRefreshedAt: &later, LastEdgeWriteAt: &base}, false},
		{"refreshed exactly at last write", RefreshState{PathsRefreshedAt: &base, LastEdgeWriteAt: &base}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.PathsStale())
		})
	}
}
