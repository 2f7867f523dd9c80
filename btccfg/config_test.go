package btccfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bitcoin.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

// TestLoadConfigFile checks that the client picks its keys out of a config
// file shared with the node and skips the rest. The section of the selected
// network overrides the top level.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server=1
txindex=1
rpcuser=alice
rpcpassword=secret
rpcconnect=10.0.0.5
testnet=1

[test]
rpcport=18999
`)

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFile(path, true, "", cfg))
	require.Equal(t, "alice", cfg.RPC.User)
	require.Equal(t, "secret", cfg.RPC.Password)
	require.Equal(t, "10.0.0.5", cfg.RPC.Connect)
	require.Equal(t, "testnet", cfg.Network)

	require.NoError(t, cfg.Validate())
	require.Equal(t, chainreg.TestNet, cfg.Params().Network)
	require.Equal(t, "10.0.0.5:18999", cfg.RPCHost())
}

func TestLoadConfigFileChain(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "chain=regtest\nrpcport=20443\n")

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFile(path, false, "", cfg))
	require.NoError(t, cfg.Validate())
	require.Equal(t, chainreg.RegTest, cfg.Params().Network)
	require.Equal(t, "127.0.0.1:20443", cfg.RPCHost())
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.conf")

	// The default location may simply not exist.
	require.NoError(t, LoadConfigFile(missing, false, "", DefaultConfig()))

	// A file the user asked for must exist.
	require.Error(t, LoadConfigFile(missing, true, "", DefaultConfig()))
}

// TestLoadConfigFileSections checks that only the section of the active
// network applies and that unknown sections don't break the file.
func TestLoadConfigFileSections(t *testing.T) {
	t.Parallel()

	const content = `
rpcuser=alice
rpcpassword=secret

[main]
rpcport=8999
rpcconnect=10.0.0.1

[test]
rpcport=18999

[regtest]
rpcuser=bob
rpcport=28999

[foo]
rpcport=1
`

	tests := []struct {
		name     string
		extra    string
		network  string
		wantNet  chainreg.Network
		wantHost string
		wantUser string
	}{
		{
			name:     "main section on mainnet",
			wantNet:  chainreg.MainNet,
			wantHost: "10.0.0.1:8999",
			wantUser: "alice",
		},
		{
			name:     "file selects testnet",
			extra:    "testnet=1\n",
			wantNet:  chainreg.TestNet,
			wantHost: "127.0.0.1:18999",
			wantUser: "alice",
		},
		{
			name:     "flag network picks section",
			extra:    "testnet=1\n",
			network:  "regtest",
			wantNet:  chainreg.RegTest,
			wantHost: "127.0.0.1:28999",
			wantUser: "bob",
		},
		{
			name:     "flag alias",
			network:  "test",
			wantNet:  chainreg.TestNet,
			wantHost: "127.0.0.1:18999",
			wantUser: "alice",
		},
		{
			name:     "no section for signet",
			network:  "signet",
			wantNet:  chainreg.SigNet,
			wantHost: "127.0.0.1:38332",
			wantUser: "alice",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tc.extra+content)

			cfg := DefaultConfig()
			require.NoError(t, LoadConfigFile(path, true, tc.network, cfg))
			require.NoError(t, cfg.Validate())
			require.Equal(t, tc.wantNet, cfg.Params().Network)
			require.Equal(t, tc.wantHost, cfg.RPCHost())
			require.Equal(t, tc.wantUser, cfg.RPC.User)
			require.Equal(t, "secret", cfg.RPC.Password)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		check   func(*testing.T, *Config)
		wantErr bool
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c *Config) {
				require.Equal(t, "mainnet", c.Network)
				require.Equal(t, "8332", c.RPC.Port)
				require.Equal(t, DefaultVerifyPeers, c.Verify.Peers)
				require.False(t, c.Fallback.HasAny())
			},
		},
		{
			name:    "unknown network",
			mutate:  func(c *Config) { c.Network = "simnet" },
			wantErr: true,
		},
		{
			name: "network alias",
			mutate: func(c *Config) {
				c.Network = "test"
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, "testnet", c.Network)
				require.Equal(t, "18332", c.RPC.Port)
			},
		},
		{
			name: "verify peers clamped",
			mutate: func(c *Config) {
				c.Verify.Peers = 99
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, MaxVerifyPeers, c.Verify.Peers)
			},
		},
		{
			name: "fallback peers clamped",
			mutate: func(c *Config) {
				c.Fallback.P2PPeers = 500
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, MaxFallbackPeers, c.Fallback.P2PPeers)
			},
		},
		{
			name: "esplora url without scheme",
			mutate: func(c *Config) {
				c.Fallback.EsploraURL = "localhost:3002/api/tx"
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(
					t, "http://localhost:3002/api/tx",
					c.Fallback.EsploraURL,
				)
			},
		},
		{
			name: "esplora url bad scheme",
			mutate: func(c *Config) {
				c.Fallback.EsploraURL = "ftp://example.com/tx"
			},
			wantErr: true,
		},
		{
			name: "bad compressor",
			mutate: func(c *Config) {
				c.Log.File.Compressor = "lzma"
			},
			wantErr: true,
		},
		{
			name: "rpcconnect with port",
			mutate: func(c *Config) {
				c.RPC.Connect = "node.local:9999"
			},
			check: func(t *testing.T, c *Config) {
				require.Equal(t, "node.local:9999", c.RPCHost())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			if tc.mutate != nil {
				tc.mutate(cfg)
			}

			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestFallbackEnableAll(t *testing.T) {
	t.Parallel()

	var f Fallback
	require.False(t, f.HasAny())

	f.EnableAll()
	require.True(t, f.HasAny())
	require.Equal(t, FallbackAllPeers, f.P2PPeers)
	require.Empty(t, f.EsploraURL)

	require.Equal(t, 1, ClampPeers(0))
	require.Equal(t, 50, ClampPeers(51))
	require.Equal(t, 1, ClampVerifyPeers(-3))
	require.Equal(t, 7, ClampVerifyPeers(7))
}
