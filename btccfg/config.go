// Package btccfg holds the configuration of the command line client: its
// defaults, validation and the optional bitcoin.conf style config file.
package btccfg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btccli/btc-cli/build"
	"github.com/btccli/btc-cli/chainreg"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
)

const (
	// DefaultConfigFilename is the name of the config file looked up in
	// the data directory.
	DefaultConfigFilename = "bitcoin.conf"

	// DefaultNetwork is the network used when none is selected.
	DefaultNetwork = "mainnet"
)

var (
	// DefaultDataDir is the data directory of the node, where the config
	// file is looked up.
	DefaultDataDir = btcutil.AppDataDir("bitcoin", false)

	// DefaultConfigFile is the config file read when --conf isn't given.
	DefaultConfigFile = filepath.Join(DefaultDataDir, DefaultConfigFilename)
)

// Config is the complete configuration of one invocation.
type Config struct {
	// Network is one of mainnet, testnet, testnet4, signet or regtest.
	Network    string
	ConfigFile string

	// DNSServer queries the DNS seeds through this host[:port] instead of
	// the system resolver.
	DNSServer string

	// LogDir, if set, also writes log lines to a rotating file there.
	LogDir string

	RPC      *RPC
	Log      *build.LogConfig
	Fallback *Fallback
	Verify   *Verify

	// params is the resolved network, set by Validate.
	params *chainreg.BitcoinNetParams
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() *Config {
	return &Config{
		Network:    DefaultNetwork,
		ConfigFile: DefaultConfigFile,
		RPC:        DefaultRPCConfig(),
		Log:        build.DefaultLogConfig(),
		Fallback:   &Fallback{},
		Verify:     DefaultVerifyConfig(),
	}
}

// Validate resolves the network, fills network dependent defaults and
// checks every sub config.
func (c *Config) Validate() error {
	params, err := chainreg.ParseNetwork(c.Network)
	if err != nil {
		return err
	}
	c.params = params
	c.Network = string(params.Network)

	if c.RPC.Port == "" {
		c.RPC.Port = params.RPCPort
	}
	if c.RPC.MaxAttempts < 1 {
		c.RPC.MaxAttempts = 1
	}

	c.ConfigFile = CleanAndExpandPath(c.ConfigFile)
	c.LogDir = CleanAndExpandPath(c.LogDir)

	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Fallback.Validate(); err != nil {
		return err
	}

	return c.Verify.Validate()
}

// Params returns the network selected by Validate.
func (c *Config) Params() *chainreg.BitcoinNetParams {
	if c.params == nil {
		params, err := chainreg.ParseNetwork(c.Network)
		if err != nil {
			return &chainreg.BitcoinMainNetParams
		}
		c.params = params
	}

	return c.params
}

// RPCHost returns the host:port of the node's JSON-RPC server.
func (c *Config) RPCHost() string {
	host := c.RPC.Connect
	if h, port, err := net.SplitHostPort(host); err == nil {
		// An explicit port in rpcconnect wins, like bitcoin-cli.
		return net.JoinHostPort(h, port)
	}

	return net.JoinHostPort(host, c.RPC.Port)
}

// connOptions are the connection keys of bitcoin.conf. They may appear at
// the top level and inside a network section.
type connOptions struct {
	RPCUser     string `ini-name:"rpcuser"`
	RPCPassword string `ini-name:"rpcpassword"`
	RPCConnect  string `ini-name:"rpcconnect"`
	RPCPort     string `ini-name:"rpcport"`
	DNSServer   string `ini-name:"dnsserver"`
}

// apply copies the keys that were present into cfg.
func (o *connOptions) apply(cfg *Config) {
	if o.RPCUser != "" {
		cfg.RPC.User = o.RPCUser
	}
	if o.RPCPassword != "" {
		cfg.RPC.Password = o.RPCPassword
	}
	if o.RPCConnect != "" {
		cfg.RPC.Connect = o.RPCConnect
	}
	if o.RPCPort != "" {
		cfg.RPC.Port = o.RPCPort
	}
	if o.DNSServer != "" {
		cfg.DNSServer = o.DNSServer
	}
}

// fileOptions are the bitcoin.conf keys the client understands. Unknown keys
// are ignored since the file is shared with the node.
type fileOptions struct {
	Conn connOptions

	Chain    string `ini-name:"chain"`
	TestNet  bool   `ini-name:"testnet"`
	TestNet4 bool   `ini-name:"testnet4"`
	SigNet   bool   `ini-name:"signet"`
	RegTest  bool   `ini-name:"regtest"`

	MainSection     connOptions `group:"main"`
	TestSection     connOptions `group:"test"`
	TestNet4Section connOptions `group:"testnet4"`
	SigNetSection   connOptions `group:"signet"`
	RegTestSection  connOptions `group:"regtest"`
}

// sectionNetworks maps the bitcoin.conf section names to their networks.
var sectionNetworks = map[string]chainreg.Network{
	"main":     chainreg.MainNet,
	"test":     chainreg.TestNet,
	"testnet4": chainreg.TestNet4,
	"signet":   chainreg.SigNet,
	"regtest":  chainreg.RegTest,
}

// network returns the network selected by the file, or "" if it selects
// none.
func (f *fileOptions) network() string {
	switch {
	case f.Chain != "":
		return f.Chain
	case f.RegTest:
		return string(chainreg.RegTest)
	case f.SigNet:
		return string(chainreg.SigNet)
	case f.TestNet4:
		return string(chainreg.TestNet4)
	case f.TestNet:
		return string(chainreg.TestNet)
	default:
		return ""
	}
}

// section returns the section options of a network.
func (f *fileOptions) section(network chainreg.Network) *connOptions {
	switch network {
	case chainreg.TestNet:
		return &f.TestSection
	case chainreg.TestNet4:
		return &f.TestNet4Section
	case chainreg.SigNet:
		return &f.SigNetSection
	case chainreg.RegTest:
		return &f.RegTestSection
	default:
		return &f.MainSection
	}
}

// knownSections copies the config file without the sections that name no
// network. The node only warns about those, so they must not make the file
// unreadable here.
func knownSections(r io.Reader) (io.Reader, error) {
	var (
		out  bytes.Buffer
		keep = true
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") &&
			strings.HasSuffix(trimmed, "]") {

			name := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			_, keep = sectionNetworks[strings.ToLower(name)]
		}

		if keep {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	return &out, scanner.Err()
}

// LoadConfigFile reads the config file at path into cfg. network is the
// network picked on the command line, or "" to let the file decide. Top
// level keys apply to every network; the section of the selected network
// overrides them. The caller applies command line flags afterwards so they
// take precedence. A missing file is only an error when the user named it
// explicitly.
func LoadConfigFile(path string, explicit bool, network string,
	cfg *Config) error {

	path = CleanAndExpandPath(path)

	file, err := os.Open(path)
	if err != nil {
		// The default location may simply not exist.
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("unable to read config file %v: %w", path,
			err)
	}
	defer file.Close()

	body, err := knownSections(file)
	if err != nil {
		return fmt.Errorf("unable to read config file %v: %w", path,
			err)
	}

	var opts fileOptions
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if err := flags.NewIniParser(parser).Parse(body); err != nil {
		return fmt.Errorf("unable to parse config file %v: %w", path,
			err)
	}

	opts.Conn.apply(cfg)

	if network == "" {
		network = opts.network()
	}
	if network != "" {
		cfg.Network = network
	}

	// An unknown network is reported by Validate.
	params, err := chainreg.ParseNetwork(cfg.Network)
	if err != nil {
		return nil
	}
	opts.section(params.Network).apply(cfg)

	return nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
