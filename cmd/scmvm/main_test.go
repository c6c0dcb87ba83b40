package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/chazu/scmvm/scm"
	"github.com/chazu/scmvm/server"
	"github.com/chazu/scmvm/vm"
)

func testFile(t *testing.T, emit func(base uint32) []byte) *scm.File {
	t.Helper()
	b := &scm.Builder{
		Target:   scm.TargetVC,
		Globals:  make([]byte, 16),
		Models:   []string{"", "CHEETAH"},
		Missions: [][]byte{scm.NewEmitter().Op(vm.OpEndThread).Bytes()},
	}
	b.Main = emit(b.CodeOffset())
	f, err := scm.Load(b.Bytes())
	require.NoError(t, err)
	return f
}

func TestDumpSummary(t *testing.T) {
	f := testFile(t, func(uint32) []byte {
		return scm.NewEmitter().Op(vm.OpEndThread).Bytes()
	})

	var buf bytes.Buffer
	require.NoError(t, dumpSummary(&buf, f))

	var got scm.Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, f.Summary(), got)
	assert.Contains(t, buf.String(), "CHEETAH")
}

func TestDisassemble(t *testing.T) {
	f := testFile(t, func(base uint32) []byte {
		return scm.NewEmitter().
			Op(vm.OpWait).Int16(250).
			Op(vm.OpGoto).Int32(int32(base)).
			Bytes()
	})

	var buf bytes.Buffer
	require.NoError(t, disassemble(&buf, f))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "wait 250")
	assert.Contains(t, lines[1], "goto")
}

func TestDisassembleStopsOnUnknownOpcode(t *testing.T) {
	f := testFile(t, func(uint32) []byte {
		return scm.NewEmitter().Op(vm.OpNop).Op(0x0F0F).Bytes()
	})

	var buf bytes.Buffer
	err := disassemble(&buf, f)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "nop")
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scmvm.toml"), []byte("[engine]\ntick-ms = 50\n"), 0644))

	cfg, err := loadConfig(options{
		configDir: dir,
		script:    "other.scm",
		strict:    true,
		trace:     "MAIN",
		serve:     ":7070",
		verbose:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Engine.TickMS)
	assert.Equal(t, "strict", cfg.Engine.Bounds)
	assert.Equal(t, "MAIN", cfg.Engine.TraceThread)
	assert.Equal(t, ":7070", cfg.Inspect.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, filepath.IsAbs(cfg.ScriptPath()))
	assert.Equal(t, "other.scm", filepath.Base(cfg.ScriptPath()))

	cfg, err = loadConfig(options{configDir: dir, tickMS: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.TickMS)
	assert.Equal(t, filepath.Join(cfg.Dir, "main.scm"), cfg.ScriptPath())
}

func TestTickLoopStopsWhenThreadsEnd(t *testing.T) {
	f := testFile(t, func(uint32) []byte {
		return scm.NewEmitter().
			Op(vm.OpWait).Int8(0).
			Op(vm.OpEndThread).
			Bytes()
	})
	m := vm.New(f, vm.NewMainModule(), vm.WithLogger(zaptest.NewLogger(t)))
	m.StartThread(int32(f.CodeSectionOffset()), false)
	w := server.NewWorker(m)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tickLoop(ctx, w, 1, 0, zaptest.NewLogger(t)))
	assert.Equal(t, uint64(2), m.Ticks())
}

func TestTickLoopLimit(t *testing.T) {
	f := testFile(t, func(base uint32) []byte {
		return scm.NewEmitter().
			Op(vm.OpWait).Int8(0).
			Op(vm.OpGoto).Int32(int32(base)).
			Bytes()
	})
	m := vm.New(f, vm.NewMainModule(), vm.WithLogger(zaptest.NewLogger(t)))
	m.StartThread(int32(f.CodeSectionOffset()), false)
	w := server.NewWorker(m)

	require.NoError(t, tickLoop(context.Background(), w, 1, 3, zaptest.NewLogger(t)))
	w.Stop()
	assert.Equal(t, uint64(3), m.Ticks())
}
