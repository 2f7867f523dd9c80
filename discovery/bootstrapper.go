package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/davecgh/go-spew/spew"
	"github.com/miekg/dns"
)

const (
	// MaxSeedResults bounds the number of candidates a single resolution
	// returns.
	MaxSeedResults = 64

	// DefaultDNSTimeout bounds a single query against a configured DNS
	// server.
	DefaultDNSTimeout = 5 * time.Second
)

// ErrNoPeers is returned when peer discovery produced no candidates at all.
var ErrNoPeers = errors.New("no peers found via DNS seeds")

// LookupFunc resolves a host name into its IPv4 addresses.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// SystemLookup resolves host with the system resolver, restricted to A
// records.
func SystemLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}

// DNSServerLookup returns a LookupFunc that sends A queries straight to the
// given DNS server instead of going through the system resolver. A response
// truncated over UDP is retried over TCP.
func DNSServerLookup(server string, timeout time.Duration) LookupFunc {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return func(ctx context.Context, host string) ([]net.IP, error) {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

		udp := &dns.Client{Net: "udp", Timeout: timeout}
		resp, _, err := udp.ExchangeContext(ctx, msg, server)
		if err == nil && resp.Truncated {
			log.Tracef("Truncated answer for %v, retrying over TCP",
				host)

			tcp := &dns.Client{Net: "tcp", Timeout: timeout}
			resp, _, err = tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			return nil, err
		}

		// If the message response code was not the success code, fail.
		if resp.Rcode != dns.RcodeSuccess {
			return nil, fmt.Errorf("unsuccessful A request for %v, "+
				"received: %v", host, dns.RcodeToString[resp.Rcode])
		}

		var ips []net.IP
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A)
			}
		}

		return ips, nil
	}
}

// DNSSeedBootstrapper turns the fixed seed list of a network into a list of
// candidate peer addresses.
type DNSSeedBootstrapper struct {
	lookupHost LookupFunc
}

// NewDNSSeedBootstrapper returns a bootstrapper resolving seeds with the given
// lookup function. A nil function selects the system resolver.
func NewDNSSeedBootstrapper(lookupHost LookupFunc) *DNSSeedBootstrapper {
	if lookupHost == nil {
		lookupHost = SystemLookup
	}

	return &DNSSeedBootstrapper{
		lookupHost: lookupHost,
	}
}

// SampleNodeAddrs resolves the seeds in order and returns at most maxAddrs
// distinct IPv4 addresses. IP literals in the seed list are taken as they
// are. A seed that fails to resolve is skipped, so an empty result is not
// an error; only a cancelled context is.
func (d *DNSSeedBootstrapper) SampleNodeAddrs(ctx context.Context,
	seeds []string, maxAddrs int) ([]string, error) {

	if maxAddrs <= 0 || maxAddrs > MaxSeedResults {
		maxAddrs = MaxSeedResults
	}

	seen := make(map[string]struct{})
	addrs := make([]string, 0, maxAddrs)

	add := func(ip net.IP) {
		ip4 := ip.To4()
		if ip4 == nil || len(addrs) >= maxAddrs {
			return
		}

		addr := ip4.String()
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}

	for _, seed := range seeds {
		if len(addrs) >= maxAddrs {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ip := net.ParseIP(seed); ip != nil {
			add(ip)
			continue
		}

		ips, err := d.lookupHost(ctx, seed)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}

			log.Debugf("Unable to resolve seed %v: %v", seed, err)
			continue
		}

		log.Tracef("Seed %v returned: %v", seed, spew.Sdump(ips))

		for _, ip := range ips {
			add(ip)
		}
	}

	log.Debugf("Obtained %d candidate addrs from %d seeds", len(addrs),
		len(seeds))

	return addrs, nil
}

// ResolveSeeds resolves the seed list of params with the given bootstrapper.
// Regtest has no seeds and always yields an empty list.
func (d *DNSSeedBootstrapper) ResolveSeeds(ctx context.Context,
	params *chainreg.BitcoinNetParams, maxAddrs int) ([]string, error) {

	return d.SampleNodeAddrs(ctx, params.Seeds, maxAddrs)
}

// ResolveSeeds resolves the seed list of params with the system resolver.
func ResolveSeeds(ctx context.Context, params *chainreg.BitcoinNetParams,
	maxAddrs int) ([]string, error) {

	return NewDNSSeedBootstrapper(nil).ResolveSeeds(ctx, params, maxAddrs)
}

// CandidateFunc produces the peer addresses an operation should try. The
// addresses are either bare IPs, which get the network's default port, or
// host:port pairs.
type CandidateFunc func(ctx context.Context, maxAddrs int) ([]string, error)

// SeedCandidates returns a CandidateFunc resolving the seed list of params.
func SeedCandidates(d *DNSSeedBootstrapper,
	params *chainreg.BitcoinNetParams) CandidateFunc {

	return func(ctx context.Context, maxAddrs int) ([]string, error) {
		return d.ResolveSeeds(ctx, params, maxAddrs)
	}
}

// StaticCandidates returns a CandidateFunc that always yields a copy of
// addrs, truncated to the requested maximum.
func StaticCandidates(addrs ...string) CandidateFunc {
	return func(_ context.Context, maxAddrs int) ([]string, error) {
		n := len(addrs)
		if maxAddrs > 0 && maxAddrs < n {
			n = maxAddrs
		}

		out := make([]string, n)
		copy(out, addrs[:n])

		return out, nil
	}
}

// Shuffle permutes addrs in place with a Fisher-Yates shuffle.
func Shuffle(addrs []string) {
	rand.Shuffle(len(addrs), func(i, j int) {
		addrs[i], addrs[j] = addrs[j], addrs[i]
	})
}

// JoinHostPort appends the default port to addr unless it already carries
// one.
func JoinHostPort(addr, defaultPort string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return net.JoinHostPort(strings.Trim(addr, "[]"), defaultPort)
}
