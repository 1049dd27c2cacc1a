package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCorners(t *testing.T) {
	c, err := parseCorners("1,2, 3,4,5,6,7,8")
	require.NoError(t, err)
	assert.Equal(t, 3.0, c[1].X)
	assert.Equal(t, 8.0, c[3].Y)

	_, err = parseCorners("1,2,3")
	assert.Error(t, err)
	_, err = parseCorners("1,2,3,4,5,6,7,x")
	assert.Error(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Setenv("TRACEFINITY_STORAGE", t.TempDir())
	assert.Error(t, run(context.Background(), []string{"frobnicate"}))
	assert.NoError(t, run(context.Background(), []string{"version"}))
	assert.Error(t, run(context.Background(), []string{"build"}), "missing -job")
}

func TestRun_ListEmptyLibrary(t *testing.T) {
	t.Setenv("TRACEFINITY_STORAGE", t.TempDir())
	assert.NoError(t, run(context.Background(), []string{"tool", "list"}))
	assert.NoError(t, run(context.Background(), []string{"bin", "list"}))
}
