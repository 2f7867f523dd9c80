package build

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*SubLoggerManager, *bytes.Buffer) {
	var buf bytes.Buffer
	mgr := NewSubLoggerManager(&LogWriter{Console: &buf})
	for _, subsystem := range []string{"PEER", "BCST", "PROP"} {
		NewSubLogger(subsystem, mgr.GenSubLogger)
	}

	return mgr, &buf
}

func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		level   string
		want    map[string]btclog.Level
		wantErr string
	}{
		{
			name:  "global",
			level: "debug",
			want: map[string]btclog.Level{
				"PEER": btclog.LevelDebug,
				"BCST": btclog.LevelDebug,
				"PROP": btclog.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,PEER=trace",
			want: map[string]btclog.Level{
				"PEER": btclog.LevelTrace,
				"BCST": btclog.LevelWarn,
				"PROP": btclog.LevelWarn,
			},
		},
		{
			name:  "subsystems only",
			level: "BCST=error,PROP=off",
			want: map[string]btclog.Level{
				"PEER": btclog.LevelInfo,
				"BCST": btclog.LevelError,
				"PROP": btclog.LevelOff,
			},
		},
		{
			name:    "invalid global",
			level:   "loud",
			wantErr: "is invalid",
		},
		{
			name:    "unknown subsystem",
			level:   "NOPE=debug",
			wantErr: "supported subsystems are [BCST PEER PROP]",
		},
		{
			name:    "malformed pair",
			level:   "info,PEER",
			wantErr: "invalid format",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr, _ := newTestManager()
			err := ParseAndSetDebugLevels(tc.level, mgr)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			for subsystem, level := range tc.want {
				require.Equal(t, level,
					mgr.SubLoggers()[subsystem].Level(),
					subsystem)
			}
		})
	}
}

// TestLogWriterMirrors asserts log lines reach the console stream.
func TestLogWriterMirrors(t *testing.T) {
	t.Parallel()

	mgr, buf := newTestManager()
	mgr.SubLoggers()["PEER"].Infof("connected to %v", "127.0.0.1:8333")

	require.Contains(t, buf.String(), "[INF] PEER: connected to "+
		"127.0.0.1:8333")
}

func TestLogConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()
	require.NoError(t, cfg.Validate())

	cfg.DebugLevel = "PEER=debug"
	require.NoError(t, cfg.Validate())

	cfg.DebugLevel = "chatty"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.File.Compressor = "lz4"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.File.MaxLogFileSize = 0
	require.Error(t, cfg.Validate())
}

// TestRotatingLogWriter asserts lines reach the per-network log file.
func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	logFile := LogFilePath(t.TempDir(), "regtest")
	require.Equal(t, DefaultLogFilename, filepath.Base(logFile))
	require.Equal(t, "regtest", filepath.Base(filepath.Dir(logFile)))

	r := NewRotatingLogWriter()

	// Writes before the file is open are dropped silently.
	n, err := r.Write([]byte("dropped\n"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Empty(t, r.Path())

	cfg := DefaultLogConfig().File
	require.NoError(t, r.InitLogRotator(cfg, logFile))
	require.Equal(t, logFile, r.Path())

	w := &LogWriter{Console: io.Discard, Rotator: r}
	_, err = w.Write([]byte("broadcast to 2/2 peers\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Equal(t, "broadcast to 2/2 peers\n", string(content))

	bad := &FileLoggerConfig{Compressor: "lz4", MaxLogFileSize: 1}
	err = NewRotatingLogWriter().InitLogRotator(bad, logFile)
	require.ErrorContains(t, err, "unknown log compressor")
}
