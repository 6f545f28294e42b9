package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadScore(t *testing.T) {
	var l Lead
	assert.False(t, l.Scored())
	assert.Equal(t, NeutralScore, l.Score(), "unscored leads rank with the neutral default")

	s := 72.5
	l.QualificationScore = &s
	assert.True(t, l.Scored())
	assert.Equal(t, 72.5, l.Score())

	zero := 0.0
	l.QualificationScore = &zero
	assert.True(t, l.Scored(), "an explicit zero is still a score")
	assert.Equal(t, 0.0, l.Score())
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, 3, PriorityFor(QualityHigh))
	assert.Equal(t, 2, PriorityFor(QualityMedium))
	assert.Equal(t, 1, PriorityFor(QualityLow))
	assert.Equal(t, 1, PriorityFor(ExpectedQuality("unknown")))
}
