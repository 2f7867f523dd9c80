package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/btccli/btc-cli/broadcast"
	"github.com/btccli/btc-cli/chainreg"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// runCapture runs the app with a command that only loads the configuration.
func runCapture(t *testing.T, args ...string) (*btccfg.Config, error) {
	t.Helper()

	var cfg *btccfg.Config
	app := newApp()
	app.Commands = []cli.Command{{
		Name: "capture",
		Flags: append(
			append([]cli.Flag{}, fallbackFlags...), verifyFlags...,
		),
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = loadConfig(ctx)

			return err
		},
	}}

	// Never pick up the user's real config file.
	hasConf := false
	for _, arg := range args {
		hasConf = hasConf || arg == "--conf"
	}
	if !hasConf {
		args = append([]string{"--conf", writeConf(t, "")}, args...)
	}

	err := app.Run(append([]string{"btc-cli"}, args...))

	return cfg, err
}

func writeConf(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bitcoin.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

// TestLoadConfigPrecedence asserts flags override the config file, which
// overrides the defaults.
func TestLoadConfigPrecedence(t *testing.T) {
	conf := writeConf(t, strings.Join([]string{
		"regtest=1",
		"rpcuser=alice",
		"rpcpassword=filepass",
		"rpcport=18555",
		"txindex=1",
		"",
	}, "\n"))

	cfg, err := runCapture(t,
		"--conf", conf, "--rpcuser", "bob", "capture",
		"--fallback-all", "--fallback-p2p", "70", "--verify",
	)
	require.NoError(t, err)

	require.Equal(t, string(chainreg.RegTest), cfg.Network)
	require.Equal(t, &chainreg.BitcoinRegTestNetParams, cfg.Params())
	require.Equal(t, "bob", cfg.RPC.User)
	require.Equal(t, "filepass", cfg.RPC.Password)
	require.Equal(t, "127.0.0.1:18555", cfg.RPCHost())

	require.True(t, cfg.Fallback.MempoolSpace)
	require.True(t, cfg.Fallback.BlockCypher)
	require.Equal(t, btccfg.MaxFallbackPeers, cfg.Fallback.P2PPeers)
	require.True(t, cfg.Verify.Enabled)
	require.Equal(t, btccfg.DefaultVerifyPeers, cfg.Verify.Peers)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := runCapture(t,
		"--network", "signet", "capture", "--fallback-p2p", "0",
		"--verify-peers", "40",
	)
	require.NoError(t, err)

	require.Equal(t, string(chainreg.SigNet), cfg.Network)
	require.Equal(t, "127.0.0.1:38332", cfg.RPCHost())
	require.Equal(t, 1, cfg.Fallback.P2PPeers)
	require.Equal(t, btccfg.MaxVerifyPeers, cfg.Verify.Peers)
	require.Equal(t, "info", cfg.Log.DebugLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{
			name: "explicit config file missing",
			args: []string{
				"--conf", "/nonexistent/bitcoin.conf", "capture",
			},
		},
		{
			name: "unknown network",
			args: []string{"--network", "litecoin", "capture"},
		},
		{
			name: "bad debug level",
			args: []string{"--debuglevel", "loud", "capture"},
		},
		{
			name: "unsupported esplora scheme",
			args: []string{
				"capture", "--fallback-esplora", "ftp://host/tx",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCapture(t, tc.args...)
			require.Error(t, err)
		})
	}
}

func TestReadRPCPassword(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		want  string
		fail  bool
	}{
		{input: "secret\nnext line\n", want: "secret"},
		{input: "secret\r\n", want: "secret"},
		{input: "no newline", want: "no newline"},
		{input: "", fail: true},
	}

	for _, tc := range testCases {
		pass, err := readRPCPassword(strings.NewReader(tc.input))
		if tc.fail {
			require.Error(t, err)
			continue
		}

		require.NoError(t, err)
		require.Equal(t, tc.want, pass)
	}
}

func TestFallbackTxID(t *testing.T) {
	t.Parallel()

	// The genesis coinbase transaction.
	const (
		genesisTx = "01000000010000000000000000000000000000000000000000" +
			"000000000000000000000000ffffffff4d04ffff001d01044" +
			"5546865205469" +
			"6d65732030332f4a616e2f32303039204368616e63656c6c6f" +
			"72206f6e206272696e6b206f66207365636f6e64206261696c" +
			"6f757420666f722062616e6b73ffffffff0100f2052a010000" +
			"00434104678afdb0fe5548271967f1a67130b7105cd6a828e0" +
			"3909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec1" +
			"12de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"
		genesisTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc7" +
			"7ab2127b7afdeda33b"
		otherTxID = "0e3e2357e806b6cdb1f70b54c3a3a17b6714ee1f0e68bebb" +
			"44a74b1efd512098"
	)

	results := []broadcast.Result{
		{Channel: broadcast.ChannelBlockchainInfo, Success: true,
			Token: "Transaction Submitted"},
		{Channel: broadcast.ChannelEsplora, Success: true,
			Token: strings.ToUpper(otherTxID)},
	}

	require.Equal(t, genesisTxID, fallbackTxID(genesisTx, nil))
	require.Equal(t, otherTxID, fallbackTxID("00", results))
	require.Equal(t, viaFallback, fallbackTxID("00", results[:1]))
}
