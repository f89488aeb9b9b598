package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/pkg/compiler"
)

func testProgram() *compiler.Program {
	e := emit.NewEmitter()
	_, _ = e.Emit(emit.PUSHI, 41)
	_, _ = e.Emit(emit.RET, 0)
	return &compiler.Program{
		Code:        e.Bytes(),
		Symbols:     map[string]int{"main": 0},
		NativeFuncs: []string{"div"},
		Classes:     []compiler.ClassDesc{{Name: "Actor", VtblOffset: 64, VtblSize: 2}},
	}
}

func TestHandleExploreFuncs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, handleExplore(&buf, testProgram(), []string{"funcs"}))
	require.Contains(t, buf.String(), "main")
	require.Contains(t, buf.String(), "0")
}

func TestHandleExploreClasses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, handleExplore(&buf, testProgram(), []string{"classes"}))
	require.Contains(t, buf.String(), "Actor")
	require.Contains(t, buf.String(), "vtbl@64")
}

func TestHandleExploreNatives(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, handleExplore(&buf, testProgram(), []string{"natives"}))
	require.Contains(t, buf.String(), "[0] div")
}

func TestHandleExploreDis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, handleExplore(&buf, testProgram(), []string{"dis", "main"}))
	require.Contains(t, buf.String(), "pushi")

	require.Error(t, handleExplore(&buf, testProgram(), []string{"dis"}))
	require.Error(t, handleExplore(&buf, testProgram(), []string{"dis", "missing"}))
}

func TestHandleExploreUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, handleExplore(&buf, testProgram(), []string{"frobnicate"}))
}

func TestWrap(t *testing.T) {
	require.Equal(t, "short", wrap("short", 80))
	require.Equal(t, "unchanged when zero", wrap("unchanged when zero", 0))

	wrapped := wrap("one two three four five six seven eight", 10)
	for _, line := range strings.Split(wrapped, "\n") {
		require.LessOrEqual(t, len(line), 10)
	}
	require.Equal(t, "one two three four five six seven eight",
		strings.ReplaceAll(wrapped, "\n", " "))
}
