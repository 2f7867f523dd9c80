package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

// globalFlags are accepted before the command name.
var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name: "network, n",
		Usage: "The network to use: mainnet, testnet, testnet4, " +
			"signet or regtest.",
		Value: btccfg.DefaultNetwork,
	},
	cli.StringFlag{
		Name:  "conf",
		Usage: "The path to the bitcoin.conf style config file.",
		Value: btccfg.DefaultConfigFile,
	},
	cli.StringFlag{
		Name:  "rpcconnect",
		Usage: "The host of the node's JSON-RPC server.",
		Value: btccfg.DefaultRPCHost,
	},
	cli.StringFlag{
		Name:  "rpcport",
		Usage: "The JSON-RPC port (default depends on the network).",
	},
	cli.StringFlag{
		Name:  "rpcuser",
		Usage: "The username for JSON-RPC connections.",
	},
	cli.StringFlag{
		Name:  "rpcpassword",
		Usage: "The password for JSON-RPC connections.",
	},
	cli.BoolFlag{
		Name: "stdinrpcpass",
		Usage: "Read the JSON-RPC password from the first line of " +
			"stdin, or prompt for it on a terminal.",
	},
	cli.DurationFlag{
		Name:  "rpcclienttimeout",
		Usage: "The timeout of a single JSON-RPC request.",
		Value: btccfg.DefaultRPCTimeout,
	},
	cli.StringFlag{
		Name: "dnsserver",
		Usage: "Query DNS seeds through this server (host[:port]) " +
			"instead of the system resolver.",
	},
	cli.StringFlag{
		Name: "debuglevel",
		Usage: "The log level for all subsystems, or a list of " +
			"<subsystem>=<level> pairs.",
		Value: "info",
	},
	cli.StringFlag{
		Name:  "logdir",
		Usage: "Also write log lines to a rotating file in this directory.",
	},
	cli.BoolFlag{
		Name:  "quiet, q",
		Usage: "Do not write log lines to stderr.",
	},
}

// fallbackFlags select the broadcast channels.
var fallbackFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "fallback-mempool-space",
		Usage: "Broadcast through mempool.space.",
	},
	cli.BoolFlag{
		Name:  "fallback-blockstream",
		Usage: "Broadcast through blockstream.info.",
	},
	cli.BoolFlag{
		Name:  "fallback-blockchair",
		Usage: "Broadcast through api.blockchair.com.",
	},
	cli.BoolFlag{
		Name:  "fallback-blockchain-info",
		Usage: "Broadcast through blockchain.info.",
	},
	cli.BoolFlag{
		Name:  "fallback-blockcypher",
		Usage: "Broadcast through api.blockcypher.com.",
	},
	cli.StringFlag{
		Name:  "fallback-esplora",
		Usage: "Broadcast through this Esplora push URL.",
	},
	cli.IntFlag{
		Name:  "fallback-p2p",
		Usage: "Broadcast directly to this many peers (1-50).",
	},
	cli.BoolFlag{
		Name: "fallback-all",
		Usage: "Enable every public API and broadcast to 10 peers " +
			"directly.",
	},
}

// verifyFlags control the propagation check after a submission.
var verifyFlags = []cli.Flag{
	cli.BoolFlag{
		Name: "verify",
		Usage: "Check that peers announce the transaction from " +
			"their mempools.",
	},
	cli.IntFlag{
		Name:  "verify-peers",
		Usage: "The number of peers to check (1-10).",
		Value: btccfg.DefaultVerifyPeers,
	},
}

// loadConfig builds the configuration of the invocation: the defaults, then
// the config file, then the command line, which wins.
func loadConfig(ctx *cli.Context) (*btccfg.Config, error) {
	cfg := btccfg.DefaultConfig()

	// The network flag picks the config file section to apply.
	var network string
	if ctx.GlobalIsSet("network") {
		network = ctx.GlobalString("network")
	}

	cfg.ConfigFile = ctx.GlobalString("conf")
	err := btccfg.LoadConfigFile(
		cfg.ConfigFile, ctx.GlobalIsSet("conf"), network, cfg,
	)
	if err != nil {
		return nil, err
	}

	applyGlobalFlags(ctx, cfg)
	applyCommandFlags(ctx, cfg)

	if ctx.GlobalBool("stdinrpcpass") {
		pass, err := readRPCPassword(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read rpc password: %w",
				err)
		}
		cfg.RPC.Password = pass
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyGlobalFlags copies the global flags the user actually set.
func applyGlobalFlags(ctx *cli.Context, cfg *btccfg.Config) {
	if ctx.GlobalIsSet("network") {
		cfg.Network = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("rpcconnect") {
		cfg.RPC.Connect = ctx.GlobalString("rpcconnect")
	}
	if ctx.GlobalIsSet("rpcport") {
		cfg.RPC.Port = ctx.GlobalString("rpcport")
	}
	if ctx.GlobalIsSet("rpcuser") {
		cfg.RPC.User = ctx.GlobalString("rpcuser")
	}
	if ctx.GlobalIsSet("rpcpassword") {
		cfg.RPC.Password = ctx.GlobalString("rpcpassword")
	}
	if ctx.GlobalIsSet("rpcclienttimeout") {
		cfg.RPC.Timeout = ctx.GlobalDuration("rpcclienttimeout")
	}
	if ctx.GlobalIsSet("dnsserver") {
		cfg.DNSServer = ctx.GlobalString("dnsserver")
	}
	if ctx.GlobalIsSet("logdir") {
		cfg.LogDir = ctx.GlobalString("logdir")
	}

	cfg.Log.DebugLevel = ctx.GlobalString("debuglevel")
	cfg.Log.Quiet = ctx.GlobalBool("quiet")
}

// applyCommandFlags copies the channel and verification flags of the
// command, if it has them.
func applyCommandFlags(ctx *cli.Context, cfg *btccfg.Config) {
	fb := cfg.Fallback
	if ctx.Bool("fallback-all") {
		fb.EnableAll()
	}
	if ctx.Bool("fallback-mempool-space") {
		fb.MempoolSpace = true
	}
	if ctx.Bool("fallback-blockstream") {
		fb.Blockstream = true
	}
	if ctx.Bool("fallback-blockchair") {
		fb.Blockchair = true
	}
	if ctx.Bool("fallback-blockchain-info") {
		fb.BlockchainInfo = true
	}
	if ctx.Bool("fallback-blockcypher") {
		fb.BlockCypher = true
	}
	if ctx.IsSet("fallback-esplora") {
		fb.EsploraURL = ctx.String("fallback-esplora")
	}
	if ctx.IsSet("fallback-p2p") {
		fb.P2PPeers = btccfg.ClampPeers(ctx.Int("fallback-p2p"))
	}

	if ctx.Bool("verify") {
		cfg.Verify.Enabled = true
	}
	if ctx.IsSet("verify-peers") {
		cfg.Verify.Peers = ctx.Int("verify-peers")
	}
}

// readRPCPassword reads the password from the first line of r. On a terminal
// the user is prompted and the input is not echoed.
func readRPCPassword(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && f == os.Stdin &&
		term.IsTerminal(int(syscall.Stdin)) { // nolint:unconvert

		pw, err := readPassword("RPC password: ")
		if err != nil {
			return "", err
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads a password from the terminal. The prompt goes to stderr
// so stdout only carries command results.
func readPassword(text string) ([]byte, error) {
	fmt.Fprint(os.Stderr, text)

	// The variable syscall.Stdin is of a different type in the Windows API
	// that's why we need the explicit cast. And of course the linter
	// doesn't like it either.
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)

	return pw, err
}
