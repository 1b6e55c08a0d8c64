package usecase

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceGuardClaimOnce(t *testing.T) {
	g := NewReferenceGuard()

	first, _ := g.Claim("s1", "abc")
	require.True(t, first)

	again, out := g.Claim("s1", "abc")
	assert.False(t, again)
	assert.Equal(t, StepVerifying, out.Step)

	g.Finish("s1", "abc", Outcome{Step: StepFailed, Message: "nope"}, nil)
	again, out = g.Claim("s1", "abc")
	assert.False(t, again)
	assert.Equal(t, "nope", out.Message)

	other, _ := g.Claim("s1", "xyz")
	assert.True(t, other)
}

func TestReferenceGuardIsPerSession(t *testing.T) {
	g := NewReferenceGuard()
	first, _ := g.Claim("s1", "abc")
	require.True(t, first)
	g.Finish("s1", "abc", Outcome{Step: StepSuccess}, nil)

	first, _ = g.Claim("s2", "abc")
	assert.True(t, first)
}

func TestReferenceGuardReleasesOnError(t *testing.T) {
	g := NewReferenceGuard()
	first, _ := g.Claim("s1", "abc")
	require.True(t, first)
	g.Finish("s1", "abc", Outcome{Step: StepFailed}, errors.New("upstream timeout"))

	first, _ = g.Claim("s1", "abc")
	assert.True(t, first)
}

func TestReferenceGuardForgetAndPrune(t *testing.T) {
	g := NewReferenceGuard()
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }

	for _, s := range []string{"s1", "s2"} {
		ok, _ := g.Claim(s, "old")
		require.True(t, ok)
		g.Finish(s, "old", Outcome{Step: StepSuccess}, nil)
	}
	clock = clock.Add(time.Hour)
	ok, _ := g.Claim("s3", "new")
	require.True(t, ok)
	g.Finish("s3", "new", Outcome{Step: StepSuccess}, nil)
	ok, _ = g.Claim("s4", "pending")
	require.True(t, ok)

	g.Forget("s1")
	first, _ := g.Claim("s1", "old")
	assert.True(t, first)
	g.Finish("s1", "old", Outcome{Step: StepSuccess}, nil)

	assert.Equal(t, 1, g.Prune(clock.Add(-time.Minute)))
	assert.Len(t, g.seen, 3)
	first, _ = g.Claim("s2", "old")
	assert.True(t, first)

	// in-flight claims survive pruning
	g.Prune(clock.Add(time.Hour))
	again, out := g.Claim("s4", "pending")
	assert.False(t, again)
	assert.Equal(t, StepVerifying, out.Step)
}

func TestReferenceGuardConcurrentClaims(t *testing.T) {
	g := NewReferenceGuard()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Claim("s1", "same"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
