package chainreg

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// Network identifies one of the supported Bitcoin networks.
type Network string

const (
	// MainNet is the production Bitcoin network.
	MainNet Network = "mainnet"

	// TestNet is the third version of the public test network.
	TestNet Network = "testnet"

	// TestNet4 is the fourth version of the public test network.
	TestNet4 Network = "testnet4"

	// SigNet is the default signet.
	SigNet Network = "signet"

	// RegTest is a local regression test network.
	RegTest Network = "regtest"
)

const (
	// testNet4Magic is the testnet4 network magic. Its on-wire bytes are
	// 1c 16 3f 28.
	testNet4Magic wire.BitcoinNet = 0x283f161c

	// signetMagic is the default signet magic. Its on-wire bytes are
	// 0a 03 cf 40.
	signetMagic wire.BitcoinNet = 0x40cf030a
)

// BitcoinNetParams couples the p2p parameters of a network with the
// corresponding RPC port of a node running on the particular network and
// the endpoints the broadcast fallbacks use for it.
type BitcoinNetParams struct {
	*chaincfg.Params

	// Network is the short name of the network.
	Network Network

	// RPCPort is the default JSON-RPC port of a node on this network.
	RPCPort string

	// Seeds is the fixed list of DNS seed hostnames, possibly including
	// IP literals, used for peer discovery.
	Seeds []string

	// EsploraPath is the path of the transaction push endpoint on
	// Esplora-shaped explorers.
	EsploraPath string

	// BlockchairPath is the push endpoint on api.blockchair.com.
	BlockchairPath string

	// BlockCypherChain is the <coin>/<chain> segment used in
	// api.blockcypher.com URLs.
	BlockCypherChain string
}

// Magic returns the network magic that prefixes every wire message.
func (p *BitcoinNetParams) Magic() wire.BitcoinNet {
	return p.Net
}

// P2PPort returns the default peer-to-peer port of the network.
func (p *BitcoinNetParams) P2PPort() string {
	return p.DefaultPort
}

// testNet4Params derives the testnet4 base parameters from testnet3 since
// only the identity fields matter for broadcasting.
func testNet4Params() *chaincfg.Params {
	params := chaincfg.TestNet3Params
	params.Name = string(TestNet4)
	params.Net = testNet4Magic
	params.DefaultPort = "48333"
	params.DNSSeeds = nil

	return &params
}

// signetParams returns the default signet parameters with the magic pinned
// to the well known value.
func signetParams() *chaincfg.Params {
	params := chaincfg.SigNetParams
	params.Net = signetMagic

	return &params
}

// BitcoinMainNetParams contains parameters specific to the current Bitcoin
// mainnet.
var BitcoinMainNetParams = BitcoinNetParams{
	Params:  &chaincfg.MainNetParams,
	Network: MainNet,
	RPCPort: "8332",
	Seeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr-list-of-p2p-nodes.us",
		"seed.bitcoinstats.com",
		"seed.bitcoin.jonasschnelli.ch",
		"seed.btc.petertodd.net",
		"seed.bitcoin.sprovoost.nl",
	},
	EsploraPath:      "/api/tx",
	BlockchairPath:   "/bitcoin/push/transaction",
	BlockCypherChain: "btc/main",
}

// BitcoinTestNetParams contains parameters specific to the 3rd version of the
// test network.
var BitcoinTestNetParams = BitcoinNetParams{
	Params:  &chaincfg.TestNet3Params,
	Network: TestNet,
	RPCPort: "18332",
	Seeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"seed.tbtc.petertodd.net",
		"testnet-seed.bluematt.me",
	},
	EsploraPath:      "/testnet/api/tx",
	BlockchairPath:   "/bitcoin/testnet/push/transaction",
	BlockCypherChain: "btc/test3",
}

// BitcoinTestNet4Params contains parameters specific to the 4th version of the
// test network.
var BitcoinTestNet4Params = BitcoinNetParams{
	Params:  testNet4Params(),
	Network: TestNet4,
	RPCPort: "48332",
	Seeds: []string{
		"seed.testnet4.bitcoin.sprovoost.nl",
		"seed.testnet4.wiz.biz",
	},
	EsploraPath:      "/testnet4/api/tx",
	BlockchairPath:   "/bitcoin/testnet/push/transaction",
	BlockCypherChain: "btc/test3",
}

// BitcoinSigNetParams contains parameters specific to the default signet.
var BitcoinSigNetParams = BitcoinNetParams{
	Params:  signetParams(),
	Network: SigNet,
	RPCPort: "38332",
	Seeds: []string{
		"seed.signet.bitcoin.sprovoost.nl",
		"178.128.221.177",
	},
	EsploraPath:      "/signet/api/tx",
	BlockchairPath:   "/bitcoin/testnet/push/transaction",
	BlockCypherChain: "btc/test3",
}

// BitcoinRegTestNetParams contains parameters specific to a local bitcoin
// regtest network. It has no seeds.
var BitcoinRegTestNetParams = BitcoinNetParams{
	Params:           &chaincfg.RegressionNetParams,
	Network:          RegTest,
	RPCPort:          "18443",
	EsploraPath:      "/api/tx",
	BlockchairPath:   "/bitcoin/testnet/push/transaction",
	BlockCypherChain: "btc/test3",
}

// ParseNetwork maps a user supplied network name to its parameters.
func ParseNetwork(name string) (*BitcoinNetParams, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "main":
		return &BitcoinMainNetParams, nil

	case "testnet", "testnet3", "test":
		return &BitcoinTestNetParams, nil

	case "testnet4":
		return &BitcoinTestNet4Params, nil

	case "signet":
		return &BitcoinSigNetParams, nil

	case "regtest":
		return &BitcoinRegTestNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// IsTestnet reports whether the network should use the test endpoints of
// third party APIs.
func (p *BitcoinNetParams) IsTestnet() bool {
	return p.Network != MainNet
}
