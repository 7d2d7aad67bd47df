package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tao-Zi-Liu/WoInsert/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"serve"}, {"migrate"}, {"user", "add"}, {"woid"}, {"check"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	add, _, err := root.Find([]string{"user", "add"})
	require.NoError(t, err)
	role := add.Flags().Lookup("role")
	require.NotNil(t, role)
	assert.Equal(t, "operator", role.DefValue)
}

func TestInitLogger(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for level, want := range tests {
		logger, err := initLogger(config.LogConfig{Level: level, Format: "json"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(want), level)
		assert.False(t, logger.Core().Enabled(want-1), level)
	}
}

func TestCheckReportsFileLineNumbers(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JWT_SECRET", "check-secret")
	t.Setenv("DB_STORE", "relational")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOOKUP_BACKEND", "store")
	t.Setenv("AI_MODE", "off")

	// 第3行为空行，第4行只有分隔符
	const content = "WO_WOID,WO_WLID,WO_XQSL,WO_JHKGRQ,WO_JHWGRQ,WO_BMID\n" +
		"UW25030101,M-1,5,2025-03-01,2025-03-02,GQ\n" +
		"\n" +
		",,,,,\n" +
		"UW25030102,M-1,0,2025-03-01,2025-03-02,GQ\n"
	file := filepath.Join(dir, "tasks.csv")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"check", file})

	err := root.Execute()
	require.Error(t, err, "rows with errors fail the command")

	report := out.String()
	assert.Contains(t, report, "row 5: WO_XQSL: quantity must be > 0.")
	assert.Contains(t, report, "row 2: ")
	assert.NotContains(t, report, "row 3:")
	assert.NotContains(t, report, "row 4:")
	assert.Contains(t, report, "result: rejected")
}
