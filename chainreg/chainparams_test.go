package chainreg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNetwork(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    Network
		p2pPort string
		rpcPort string
		wire    [4]byte
	}{
		{
			name: "main", want: MainNet, p2pPort: "8333",
			rpcPort: "8332", wire: [4]byte{0xf9, 0xbe, 0xb4, 0xd9},
		},
		{
			name: "testnet3", want: TestNet, p2pPort: "18333",
			rpcPort: "18332", wire: [4]byte{0x0b, 0x11, 0x09, 0x07},
		},
		{
			name: "testnet4", want: TestNet4, p2pPort: "48333",
			rpcPort: "48332", wire: [4]byte{0x1c, 0x16, 0x3f, 0x28},
		},
		{
			name: "signet", want: SigNet, p2pPort: "38333",
			rpcPort: "38332", wire: [4]byte{0x0a, 0x03, 0xcf, 0x40},
		},
		{
			name: "REGTEST", want: RegTest, p2pPort: "18444",
			rpcPort: "18443", wire: [4]byte{0xfa, 0xbf, 0xb5, 0xda},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			params, err := ParseNetwork(tc.name)
			require.NoError(t, err)
			require.Equal(t, tc.want, params.Network)
			require.Equal(t, tc.p2pPort, params.P2PPort())
			require.Equal(t, tc.rpcPort, params.RPCPort)

			var magic [4]byte
			binary.LittleEndian.PutUint32(
				magic[:], uint32(params.Magic()),
			)
			require.Equal(t, tc.wire, magic)
		})
	}

	_, err := ParseNetwork("simnet")
	require.Error(t, err)
}

func TestSeedLists(t *testing.T) {
	t.Parallel()

	require.Len(t, BitcoinMainNetParams.Seeds, 7)
	require.Contains(t, BitcoinSigNetParams.Seeds, "178.128.221.177")
	require.Empty(t, BitcoinRegTestNetParams.Seeds)

	// Deriving testnet4 must leave the testnet3 params untouched.
	require.Equal(t, "18333", BitcoinTestNetParams.DefaultPort)
	require.False(t, BitcoinMainNetParams.IsTestnet())
	require.True(t, BitcoinSigNetParams.IsTestnet())
}
