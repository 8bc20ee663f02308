package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		samples, err := Read(strings.NewReader("label,x0,x1\n1,0.5,2\n0, 3,-1\n"))
		require.NoError(t, err)
		require.Len(t, samples, 2)
		assert.Equal(t, &Sample{Label: 1, Features: []float64{0.5, 2}}, samples[0])
		assert.Equal(t, &Sample{Label: 0, Features: []float64{3, -1}}, samples[1])
	})
	t.Run("without header", func(t *testing.T) {
		samples, err := Read(strings.NewReader("2,1,1,1\n"))
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, []float64{1, 1, 1}, samples[0].Features)
	})
	t.Run("errors", func(t *testing.T) {
		for name, content := range map[string]string{
			"bad value":      "1,2\n1,a\n",
			"ragged rows":    "1,2,3\n1,2\n",
			"single column":  "1\n",
			"infinite value": "1,2\n1,+Inf\n",
		} {
			_, err := Read(strings.NewReader(content))
			assert.Error(t, err, name)
		}
	})
	t.Run("stop early", func(t *testing.T) {
		var seen []int
		err := ReadBySample(strings.NewReader("1,1\n2,2\n3,3\n"), func(i int, s *Sample) (bool, error) {
			seen = append(seen, i)
			return i < 1, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, seen)
	})
}

func TestDataset(t *testing.T) {
	ds := New([]*Sample{{Label: 1, Features: []float64{1, 2}}, {Label: 0, Features: []float64{3, 4}}})
	assert.Equal(t, 2, ds.Dim())
	samples, err := Samples(context.Background(), ds)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Samples(ctx, ds)
	assert.Error(t, err)
	assert.Equal(t, 0, New(nil).Dim())
}

func TestFeatureType(t *testing.T) {
	testCases := []struct {
		values []float64
		want   string
	}{
		{values: []float64{0.5, 1}, want: "float"},
		{values: []float64{0, 1, 255}, want: "unsigned char"},
		{values: []float64{0, 256}, want: "unsigned short"},
		{values: []float64{0, 70000}, want: "unsigned int"},
		{values: []float64{-1, 100}, want: "signed char"},
		{values: []float64{-1, 200}, want: "short"},
		{values: []float64{-40000, 1}, want: "int"},
		{values: []float64{0, 1e12}, want: "float"},
	}
	for _, tc := range testCases {
		samples := []*Sample{{Features: tc.values}}
		assert.Equal(t, tc.want, FeatureType(samples), "%v", tc.values)
	}
	assert.Equal(t, "float", FeatureType(nil))
}
