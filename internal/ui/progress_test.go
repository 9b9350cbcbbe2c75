package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Progress(t *testing.T) {
	// Given: a tracker over ten files
	p := NewProgressTracker()
	p.SetStage(StageIngesting, 10)

	// When: four are done
	p.Update(4, "d.pdf")

	// Then: progress and the current file are reported
	stats := p.Stats()
	assert.InDelta(t, 0.4, stats.Progress, 0.001)
	assert.Equal(t, "d.pdf", stats.CurrentFile)
	assert.Equal(t, StageIngesting, stats.Stage)

	// And: progress never exceeds one
	p.Update(12, "")
	assert.Equal(t, 1.0, p.Progress())
	assert.Equal(t, "d.pdf", p.Stats().CurrentFile)
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	p := NewProgressTracker()
	p.Update(3, "")
	assert.Equal(t, 0.0, p.Progress())
	assert.Equal(t, time.Duration(0), p.Stats().ETA)
}

func TestProgressTracker_ETA(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIngesting, 100)
	time.Sleep(20 * time.Millisecond)
	p.Update(50, "")

	assert.Positive(t, p.Stats().ETA)

	p.Update(100, "")
	assert.Equal(t, time.Duration(0), p.Stats().ETA)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIngesting, 5)
	p.Update(5, "e.pdf")

	p.SetStage(StageReindexing, 50)

	stats := p.Stats()
	assert.Equal(t, StageReindexing, stats.Stage)
	assert.Equal(t, 0, stats.Current)
	assert.Empty(t, stats.CurrentFile)
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{File: "a.pdf", Err: errors.New("bad")})
	p.AddError(ErrorEvent{File: "b.pdf", Err: errors.New("meh"), IsWarn: true})

	assert.Len(t, p.Errors(), 1)
	assert.Len(t, p.Warnings(), 1)
	assert.Equal(t, 1, p.Stats().ErrorCount)
	assert.Equal(t, 1, p.Stats().WarnCount)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIngesting, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Update(i*10, "")
			_ = p.Stats()
		}(i)
	}
	wg.Wait()
}
