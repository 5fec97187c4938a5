package charts

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemvis/pkg/contracts/domain"
)

func summary() domain.DatasetSummary {
	return domain.DatasetSummary{
		ID: 1,
		Aggregates: domain.Aggregates{
			TotalCount:       3,
			AvgFlowrate:      120,
			AvgPressure:      5,
			AvgTemperature:   110,
			TypeDistribution: map[string]int{"Pump": 2, "Valve": 1},
		},
	}
}

func TestCharts_RenderPNG(t *testing.T) {
	tests := []struct {
		name   string
		render func(domain.DatasetSummary) ([]byte, error)
	}{
		{"type distribution", TypeDistribution},
		{"averages", Averages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.render(summary())
			require.NoError(t, err)
			require.NotEmpty(t, out)

			img, err := png.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Greater(t, img.Bounds().Dx(), 0)
			assert.Greater(t, img.Bounds().Dy(), 0)
		})
	}
}

func TestTypeDistribution_Empty(t *testing.T) {
	s := summary()
	s.TypeDistribution = nil

	_, err := TypeDistribution(s)
	assert.ErrorIs(t, err, domain.ErrEmptyDataset)
}
