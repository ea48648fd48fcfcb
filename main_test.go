package main

import (
	"bytes"
	"strings"
	"testing"

	sr "github.com/example/cardsched/internal/spaced_repetition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulate(t *testing.T) {
	out, err := runCommand(t, "simulate", "--ratings", "Good,good,Again,4")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "stability")
	assert.Contains(t, lines[3], "Again")
	assert.Contains(t, lines[3], "0.40")
	assert.Contains(t, lines[4], "Easy")
}

func TestSimulateRejectsBadInput(t *testing.T) {
	_, err := runCommand(t, "simulate", "--ratings", "Good,Perfect")
	assert.ErrorIs(t, err, sr.ErrInvalidRating)

	_, err = runCommand(t, "simulate", "--retention", "1.2")
	assert.ErrorIs(t, err, sr.ErrInvalidConfig)
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "import", "export-logs", "remind", "simulate"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
