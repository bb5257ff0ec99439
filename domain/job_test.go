package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGroup(t *testing.T) {
	assert.Equal(t, DefaultGroupName, NormalizeGroup(""))
	assert.Equal(t, DefaultGroupName, NormalizeGroup("  \t"))
	assert.Equal(t, "etl", NormalizeGroup("etl"))
}

func TestNewJobAssignsUniqueIds(t *testing.T) {
	a := NewJob("g", 1)
	b := NewJob("g", 1)
	assert.NotEmpty(t, a.JobID)
	assert.NotEqual(t, a.JobID, b.JobID)
}

func TestBefore(t *testing.T) {
	high := &Job{Priority: 5, Sequence: 9}
	low := &Job{Priority: 1, Sequence: 1}
	early := &Job{Priority: 5, Sequence: 2}

	assert.True(t, high.Before(low))
	assert.False(t, low.Before(high))
	assert.True(t, early.Before(high))
	assert.False(t, high.Before(early))
}

func TestIdentifier(t *testing.T) {
	j := &Job{JobID: "j", EngineJobID: "e", AppID: "a"}
	assert.Equal(t, JobIdentifier{EngineJobID: "e", AppID: "a", JobID: "j"}, j.Identifier())
}

func TestStageRoundTrip(t *testing.T) {
	for _, s := range []Stage{StageDB, StagePriority, StageLacking, StageSubmitted} {
		parsed, err := ParseStage(s.String())
		assert.Nil(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStage("nope")
	assert.NotNil(t, err)
}
