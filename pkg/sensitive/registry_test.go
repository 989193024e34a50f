package sensitive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	hits   []Hit
	closed bool
}

func (r *recorder) ProcessHit(h Hit) error {
	r.hits = append(r.hits, h)
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestRegisterReplacesAndReleases(t *testing.T) {
	procs := map[string][]*recorder{}
	reg := NewRegistry(WithProcessorFactory(func(name string) Processor {
		p := &recorder{}
		procs[name] = append(procs[name], p)
		return p
	}))

	first, err := reg.Register("fastSD")
	require.NoError(t, err)
	second, err := reg.Register("fastSD")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.True(t, first.Released())
	assert.False(t, second.Released())
	assert.True(t, procs["fastSD"][0].closed)
	assert.False(t, procs["fastSD"][1].closed)
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Lookup("fastSD")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestDeliver(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry(WithProcessorFactory(func(string) Processor { return rec }))
	d, err := reg.Register("bottomBGOSD")
	require.NoError(t, err)

	require.NoError(t, reg.Deliver("bottomBGOSD", Hit{Volume: "BGObottom", Edep: 0.511}))
	assert.Len(t, rec.hits, 1)
	assert.Equal(t, int64(1), d.Hits())

	err = reg.Deliver("nope", Hit{})
	assert.True(t, errors.Is(err, ErrUnknownDetector))

	// A handle kept from before a rebuild refuses further deposits.
	_, err = reg.Register("bottomBGOSD")
	require.NoError(t, err)
	assert.ErrorIs(t, d.Deliver(Hit{}), ErrReleased)
}

func TestDetectorWithoutProcessor(t *testing.T) {
	reg := NewRegistry()
	d, err := reg.Register("SASSD")
	require.NoError(t, err)
	assert.NoError(t, d.Deliver(Hit{}))
	assert.Equal(t, int64(1), d.Hits())

	_, err = reg.Register("")
	assert.Error(t, err)
}

func TestReleaseAll(t *testing.T) {
	reg := NewRegistry(WithProcessorFactory(func(string) Processor {
		return ProcessorFunc(func(Hit) error { return nil })
	}))
	var handles []*Detector
	for _, n := range []string{"fastSD", "bottomBGOSD", "SASSD"} {
		d, err := reg.Register(n)
		require.NoError(t, err)
		handles = append(handles, d)
	}
	assert.Equal(t, []string{"SASSD", "bottomBGOSD", "fastSD"}, reg.Names())

	require.NoError(t, reg.ReleaseAll())
	assert.Zero(t, reg.Len())
	for _, d := range handles {
		assert.True(t, d.Released(), d.Name())
	}
	assert.ErrorIs(t, reg.Release("fastSD"), ErrUnknownDetector)
}
