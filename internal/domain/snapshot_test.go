package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemRecord_SeedsBlocks(t *testing.T) {
	rec := ProblemRecord{
		ID:          7,
		Type:        2,
		Title:       "Cow Gymnastics",
		CntThinking: 3,
		AvgThinking: ptr(1900),
		SdThinking:  ptr(100),
		MedThinking: ptr(1950),
		CntQuality:  -1,
		AvgQuality:  ptr(3),
		MedQuality:  ptr(3),
	}

	p := rec.Problem()

	th := p.Summary(MetricThinking)
	assert.Equal(t, 3, th.Count)
	require.NotNil(t, th.Mean)
	assert.InDelta(t, 1900, *th.Mean, 1e-9)
	assert.InDelta(t, 100, *th.StdDev, 1e-6)
	assert.InDelta(t, 1950, *th.Median, 1e-9)

	q := p.Summary(MetricQuality)
	assert.Equal(t, 0, q.Count, "negative checkpoint count is clamped")
	assert.Nil(t, q.Mean)
	assert.Nil(t, q.Median, "median of an empty block is dropped")

	back := p.Record()
	assert.Equal(t, 3, back.CntThinking)
	assert.Equal(t, 0, back.CntQuality)
	assert.Nil(t, back.AvgQuality)
	assert.Equal(t, "Cow Gymnastics", back.Title)
}

func TestProblemPatch(t *testing.T) {
	title := "Renamed"
	url := "https://example.org/p/1"
	p := &Problem{ID: 1, Title: "Old", Contest: "2020 Dec Silver"}

	base := ProblemPatch{Title: &title}
	merged := base.Merge(ProblemPatch{URL: &url})
	merged.Apply(p)

	assert.Equal(t, "Renamed", p.Title)
	assert.Equal(t, url, p.URL)
	assert.Equal(t, "2020 Dec Silver", p.Contest, "nil fields leave the problem untouched")
}

func TestVoteValue(t *testing.T) {
	v := Vote{Thinking: 1800, Implementation: 2000, Overall: 2050}

	got, ok := v.Value(MetricOverall)
	assert.True(t, ok)
	assert.Equal(t, 2050.0, got)

	_, ok = v.Value(MetricQuality)
	assert.False(t, ok, "absent quality contributes nothing")

	v.Quality = ptr(-2)
	got, ok = v.Value(MetricQuality)
	assert.True(t, ok)
	assert.Equal(t, -2.0, got)
}
