package hpcadapter

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolvesBuiltins(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	slurm, err := r.New("slurm", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "slurm", slurm.Name())

	fake, err := r.New("fake", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "fake", fake.Name())
}

func TestRegistry_UnknownHPCType(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.New("not-a-scheduler", zerolog.Nop())
	require.ErrorIs(t, err, ErrUnknownHPCType)
}
