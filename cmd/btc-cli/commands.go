package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/btccli/btc-cli/btchash"
	"github.com/btccli/btc-cli/broadcast"
	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/p2p"
	"github.com/btccli/btc-cli/propagation"
	"github.com/btccli/btc-cli/sendtx"
	"github.com/btccli/btc-cli/signal"
	"github.com/urfave/cli"
)

// viaFallback is printed instead of a txid when a fallback channel accepted
// the transaction but no txid could be determined.
const viaFallback = "broadcast via fallback"

// printJSON writes resp to stdout as indented JSON.
func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stdout, "%s\n", b)
}

// getContext returns a context cancelled on SIGINT or SIGTERM.
func getContext() (context.Context, func()) {
	interceptor, err := signal.Intercept()
	if err != nil {
		fatal(err)
	}

	return interceptor.Context()
}

// setup loads the configuration and starts logging. The returned function
// must be called before exiting.
func setup(ctx *cli.Context) (*btccfg.Config, func(), error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	closeLog, err := initLogging(cfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, closeLog, nil
}

// candidateSource returns the peer candidate source of the configuration.
func candidateSource(cfg *btccfg.Config) discovery.CandidateFunc {
	lookup := discovery.SystemLookup
	if cfg.DNSServer != "" {
		lookup = discovery.DNSServerLookup(
			cfg.DNSServer, discovery.DefaultDNSTimeout,
		)
	}

	return discovery.SeedCandidates(
		discovery.NewDNSSeedBootstrapper(lookup), cfg.Params(),
	)
}

func newOrchestrator(cfg *btccfg.Config) *broadcast.Orchestrator {
	return broadcast.New(broadcast.Config{
		Params:     cfg.Params(),
		Fallback:   cfg.Fallback,
		Peer:       p2p.NewConfig(cfg.Params()),
		Candidates: candidateSource(cfg),
	})
}

func newVerifier(cfg *btccfg.Config) *propagation.Verifier {
	return propagation.New(propagation.Config{
		Params:     cfg.Params(),
		Peer:       p2p.NewConfig(cfg.Params()),
		Candidates: candidateSource(cfg),
	})
}

// fallbackTxID picks the txid to report when only the fallback channels
// accepted the transaction: the locally computed one, else the first txid a
// provider returned.
func fallbackTxID(txHex string, results []broadcast.Result) string {
	if rawTx, err := hex.DecodeString(strings.TrimSpace(txHex)); err == nil {
		if hash, err := btchash.TxIDFromRawTx(rawTx); err == nil {
			return hash.String()
		}
	}

	for _, result := range results {
		if result.Success && btchash.IsTxIDHex(result.Token) {
			return strings.ToLower(result.Token)
		}
	}

	return viaFallback
}

// runBroadcast runs the enabled fallback channels and returns the number of
// channels that accepted the transaction.
func runBroadcast(ctx context.Context, cfg *btccfg.Config,
	txHex string) (int, []broadcast.Result, error) {

	n, results, err := newOrchestrator(cfg).Broadcast(ctx, txHex)
	if err != nil {
		return 0, nil, err
	}

	if n > 0 {
		log.Infof("%d of %d channel(s) accepted the transaction", n,
			len(results))
	}

	return n, results, nil
}

// runVerify checks the propagation of txid and logs the tally.
func runVerify(ctx context.Context, cfg *btccfg.Config,
	txid string) (propagation.Tally, error) {

	log.Infof("Verifying transaction propagation...")

	return newVerifier(cfg).Verify(ctx, txid, cfg.Verify.Peers)
}

var sendRawTransactionCommand = cli.Command{
	Name:      "sendrawtransaction",
	Usage:     "Submit a raw transaction to the local node.",
	ArgsUsage: "hexstring [maxfeerate]",
	Description: `
	Submit a serialized transaction to the node's JSON-RPC server. When the
	node cannot be reached the submission is retried twice. Any enabled
	fallback channel is used as well, and the command only fails when
	neither the node nor a fallback accepted the transaction.

	With --verify, a sample of peers is asked afterwards whether the
	transaction reached their mempools.`,
	Flags:  append(append([]cli.Flag{}, fallbackFlags...), verifyFlags...),
	Action: sendRawTransaction,
}

func sendRawTransaction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.ShowCommandHelp(ctx, "sendrawtransaction")
	}
	txHex := ctx.Args().First()
	maxFeeRate := ctx.Args().Get(1)

	cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ctxc, cancel := getContext()
	defer cancel()

	submitter := sendtx.New(sendtx.Config{
		Dial: sendtx.NewRPCDialer(
			cfg.RPCHost(), cfg.RPC.User, cfg.RPC.Password,
		),
		MaxAttempts: cfg.RPC.MaxAttempts,
		Timeout:     cfg.RPC.Timeout,
	})

	var txid string
	result, rpcErr := submitter.Submit(ctxc, txHex, maxFeeRate)
	switch {
	case rpcErr == nil:
		txid = result.TxID
		if result.InLocalMempool {
			log.Infof("Confirmed in local mempool")
		}

	case errors.Is(rpcErr, sendtx.ErrInvalidHex),
		errors.Is(rpcErr, sendtx.ErrInvalidFeeRate):

		return rpcErr

	default:
		log.Errorf("Node submission failed: %v", rpcErr)
	}

	if cfg.Fallback.HasAny() {
		log.Infof("Fallback broadcast:")

		n, results, err := runBroadcast(ctxc, cfg, txHex)
		if err != nil {
			return err
		}

		if rpcErr != nil && n > 0 {
			txid = fallbackTxID(txHex, results)
			rpcErr = nil
		}
	}

	if rpcErr != nil {
		return rpcErr
	}

	fmt.Println(txid)

	if cfg.Verify.Enabled {
		if !btchash.IsTxIDHex(txid) {
			log.Warnf("Unknown txid, skipping propagation check")
			return nil
		}

		if _, err := runVerify(ctxc, cfg, txid); err != nil {
			log.Warnf("Propagation check failed: %v", err)
		}
	}

	return nil
}

var broadcastCommand = cli.Command{
	Name:      "broadcast",
	Usage:     "Broadcast a raw transaction without the local node.",
	ArgsUsage: "hexstring",
	Description: `
	Push a serialized transaction through the selected fallback channels
	only: public explorer APIs, a custom Esplora endpoint and direct peer
	connections. Every channel is tried once, in a fixed order, and a failing
	channel does not stop the others.`,
	Flags:  fallbackFlags,
	Action: broadcastTx,
}

func broadcastTx(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "broadcast")
	}
	txHex := ctx.Args().First()

	cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if !cfg.Fallback.HasAny() {
		return errors.New("no broadcast channel selected, use the " +
			"--fallback-* flags")
	}

	ctxc, cancel := getContext()
	defer cancel()

	n, results, err := runBroadcast(ctxc, cfg, txHex)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("all %d broadcast channel(s) failed",
			len(results))
	}

	fmt.Println(fallbackTxID(txHex, results))

	return nil
}

var verifyTxCommand = cli.Command{
	Name:      "verifytx",
	Usage:     "Check whether peers have a transaction in their mempools.",
	ArgsUsage: "txid",
	Description: `
	Connect to a random sample of peers, ask each for its mempool and wait
	for an announcement of the transaction. Prints how many of the checked
	peers announced it.`,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "verify-peers",
			Usage: "The number of peers to check (1-10).",
			Value: btccfg.DefaultVerifyPeers,
		},
	},
	Action: verifyTx,
}

// verifyResponse is printed by verifytx.
type verifyResponse struct {
	TxID      string `json:"txid"`
	Checked   int    `json:"checked"`
	Confirmed int    `json:"confirmed"`
}

func verifyTx(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "verifytx")
	}
	txid := ctx.Args().First()

	cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ctxc, cancel := getContext()
	defer cancel()

	tally, err := runVerify(ctxc, cfg, txid)
	if err != nil {
		return err
	}

	printJSON(&verifyResponse{
		TxID:      strings.ToLower(txid),
		Checked:   tally.Checked,
		Confirmed: tally.Confirmed,
	})

	if tally.Confirmed == 0 {
		return fmt.Errorf("transaction not found in any of %d peer "+
			"mempool(s)", tally.Checked)
	}

	return nil
}

var seedsCommand = cli.Command{
	Name:  "seeds",
	Usage: "Resolve the DNS seeds of the network and print the peers.",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "max",
			Usage: "The maximum number of peers to print.",
			Value: discovery.MaxSeedResults,
		},
	},
	Action: seeds,
}

func seeds(ctx *cli.Context) error {
	cfg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ctxc, cancel := getContext()
	defer cancel()

	addrs, err := candidateSource(cfg)(ctxc, ctx.Int("max"))
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return discovery.ErrNoPeers
	}

	port := cfg.Params().P2PPort()
	for _, addr := range addrs {
		fmt.Println(discovery.JoinHostPort(addr, port))
	}

	return nil
}
