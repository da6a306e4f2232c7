package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonthLabel(t *testing.T) {
	tests := []struct {
		month     string
		wantLabel string
		wantYear  string
	}{
		{month: "2025-01", wantLabel: "Ene 2025", wantYear: "2025"},
		{month: "2025-03", wantLabel: "Mar 2025", wantYear: "2025"},
		{month: "2024-12", wantLabel: "Dic 2024", wantYear: "2024"},
		{month: "2025-13", wantLabel: "2025-13", wantYear: "2025"},
		{month: "marzo", wantLabel: "marzo", wantYear: ""},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			label, year := MonthLabel(tt.month)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Run("folds states", func(t *testing.T) {
		s := Summarize([]MetricGeneral{
			{Name: "Pendiente", Total: 3},
			{Name: "DESCARGADO", Total: 2},
			{Name: "Procesado", Total: 6},
			{Name: " Incompleto ", Total: 2},
			{Name: "Otro", Total: 9},
		})
		assert.Equal(t, MetricsSummary{Pending: 5, Processed: 6, Incomplete: 2, Accuracy: 75}, s)
	})

	t.Run("rounds accuracy", func(t *testing.T) {
		s := Summarize([]MetricGeneral{{Name: "Procesado", Total: 2}, {Name: "Incompleto", Total: 1}})
		assert.Equal(t, 66.67, s.Accuracy)
	})

	t.Run("no data", func(t *testing.T) {
		assert.Equal(t, MetricsSummary{}, Summarize(nil))
	})
}
