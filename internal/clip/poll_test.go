package clip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollChangedReportsOnlyDifferences(t *testing.T) {
	m := NewMemory("first")
	p := NewPoller(m, time.Millisecond)

	got, changed, err := p.PollChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "first", got)

	_, changed, err = p.PollChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	m.Set("second")
	got, changed, err = p.PollChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "second", got)
}

func TestPollChangedIgnoresBlank(t *testing.T) {
	m := NewMemory("  \n\t")
	p := NewPoller(m, time.Millisecond)

	_, changed, err := p.PollChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	m.Set("")
	_, changed, _ = p.PollChanged()
	assert.False(t, changed)
}

func TestPollerReset(t *testing.T) {
	m := NewMemory("applied")
	p := NewPoller(m, time.Millisecond)
	p.Reset("applied")

	_, changed, err := p.PollChanged()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPollChangedReturnsReadError(t *testing.T) {
	m := NewMemory("x")
	boom := errors.New("boom")
	m.FailReads(boom)
	p := NewPoller(m, time.Millisecond)

	_, changed, err := p.PollChanged()
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
}

func TestChangesYieldsEachChange(t *testing.T) {
	m := NewMemory("")
	p := NewPoller(m, 2*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := []string{"one", "two", "three"}
	next := 0
	m.Set(want[0])

	var got []string
	for content := range p.Changes(ctx) {
		got = append(got, content)
		next++
		if next == len(want) {
			break
		}
		m.Set(want[next])
	}
	assert.Equal(t, want, got)
}

func TestChangesSurvivesReadErrors(t *testing.T) {
	m := NewMemory("")
	m.FailReads(errors.New("display gone"))
	p := NewPoller(m, 2*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Set("back")
		m.FailReads(nil)
	}()

	for content := range p.Changes(ctx) {
		assert.Equal(t, "back", content)
		return
	}
	t.Fatal("sequence ended without a change")
}

func TestChangesStopsOnCancel(t *testing.T) {
	p := NewPoller(NewMemory(""), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range p.Changes(ctx) {
		t.Fatal("unexpected change")
	}
}

func TestChangesIsRestartable(t *testing.T) {
	m := NewMemory("a")
	p := NewPoller(m, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq := p.Changes(ctx)
	for c := range seq {
		assert.Equal(t, "a", c)
		break
	}
	m.Set("b")
	for c := range seq {
		assert.Equal(t, "b", c)
		break
	}
}

func TestMemoryCountsWrites(t *testing.T) {
	m := NewMemory("")
	require.NoError(t, m.Write("x"))
	require.NoError(t, m.Write("y"))
	m.Set("z")
	assert.Equal(t, 2, m.Writes())

	m.FailWrites(errors.New("locked"))
	assert.Error(t, m.Write("w"))
	got, _ := m.Read()
	assert.Equal(t, "z", got)
}

func TestOpenHeadless(t *testing.T) {
	b := Open(true)
	defer b.Close()
	_, ok := b.(*Memory)
	assert.True(t, ok)
}
