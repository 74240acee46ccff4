package pingsweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/mapcidr"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/pd-discovery/pkg/probe/tools"
	mapsutil "github.com/projectdiscovery/utils/maps"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// DefaultTimeout is how long to wait for replies after each pass
	DefaultTimeout = time.Second
	// DefaultInterval is the pause between two echo requests
	DefaultInterval = time.Millisecond
	// DefaultRetries is how many times silent hosts are pinged again
	DefaultRetries = 1
	// DefaultDeadline bounds a whole sweep
	DefaultDeadline = tools.DefaultTimeout

	readPoll = 250 * time.Millisecond
)

var payload = []byte("pd-discovery-sweep")

// Peer represents a discovered ping peer
type Peer struct {
	IP  net.IP
	RTT time.Duration
}

// Sweeper pings target hosts and reports those that answer
type Sweeper struct {
	retries  int
	timeout  time.Duration
	interval time.Duration
	deadline time.Duration
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithRetries sets how many extra passes are made over silent hosts
func WithRetries(n int) Option {
	return func(s *Sweeper) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithTimeout sets the reply wait after each pass
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDeadline bounds a whole sweep; a sweep running past it fails
func WithDeadline(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// WithInterval sets the pause between echo requests
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// New creates a Sweeper
func New(opts ...Option) *Sweeper {
	s := &Sweeper{retries: DefaultRetries, timeout: DefaultTimeout, interval: DefaultInterval, deadline: DefaultDeadline}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep pings every host of target and returns responders one per line.
// A sweep that outlives the deadline returns tools.ErrTimeout and no output.
func (s *Sweeper) Sweep(ctx context.Context, target netrange.TargetSpec) ([]byte, error) {
	ips, err := expandTargets(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	peers, err := s.DiscoverPeers(ctx, ips)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: native ping sweep of %s after %s", tools.ErrTimeout, target.CIDR, s.deadline)
	}
	if err != nil {
		return nil, err
	}
	return renderPeers(peers), nil
}

// DiscoverPeers pings ips and returns those that replied
func (s *Sweeper) DiscoverPeers(ctx context.Context, ips []net.IP) ([]Peer, error) {
	var v4, v6 []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			v4 = append(v4, ip)
		} else {
			v6 = append(v6, ip)
		}
	}

	var result []Peer
	for _, group := range []struct {
		ips    []net.IP
		isIPv6 bool
	}{{v4, false}, {v6, true}} {
		if len(group.ips) == 0 {
			continue
		}
		peers, err := s.sweepFamily(ctx, group.ips, group.isIPv6)
		if err != nil {
			return nil, err
		}
		result = append(result, peers...)
	}
	return result, nil
}

// expandTargets turns a target spec into the addresses to ping
func expandTargets(target netrange.TargetSpec) ([]net.IP, error) {
	if target.IsList() {
		ips := make([]net.IP, 0, len(target.Hosts))
		for _, host := range target.Hosts {
			if ip := net.ParseIP(host); ip != nil {
				ips = append(ips, ip)
			}
		}
		return ips, nil
	}

	_, network, err := net.ParseCIDR(target.CIDR)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR: %w", err)
	}
	addresses, err := mapcidr.IPAddresses(target.CIDR)
	if err != nil {
		return nil, fmt.Errorf("failed to expand CIDR %s: %w", target.CIDR, err)
	}

	ips := make([]net.IP, 0, len(addresses))
	for _, address := range addresses {
		ip := net.ParseIP(address)
		if ip == nil || common.IsNetworkOrBroadcast(ip, network) {
			continue
		}
		ips = append(ips, ip)
	}
	return ips, nil
}

func renderPeers(peers []Peer) []byte {
	var buf bytes.Buffer
	for _, peer := range peers {
		buf.WriteString(peer.IP.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// pendingKey identifies a ping by target and sequence number, since
// sequence numbers wrap after 65535 sends
type pendingKey struct {
	ip  string
	seq int
}

// pendingPing tracks a sent ping waiting for reply
type pendingPing struct {
	IP    net.IP
	Start time.Time
}

// session is one sweep over one address family
type session struct {
	conn       net.PacketConn
	isIPv6     bool
	privileged bool
	id         int
	seq        atomic.Uint32

	pending *mapsutil.SyncLockMap[pendingKey, *pendingPing]
	peers   *mapsutil.SyncLockMap[string, *Peer]
}

func (s *Sweeper) sweepFamily(ctx context.Context, ips []net.IP, isIPv6 bool) ([]Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := openSession(isIPv6)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = sess.conn.Close()
	}()

	stop := make(chan struct{})
	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		sess.receive(ctx, stop)
	}()

	s.sendPasses(ctx, sess, ips)
	close(stop)
	<-receiverDone

	var result []Peer
	_ = sess.peers.Iterate(func(key string, peer *Peer) error {
		if peer != nil {
			result = append(result, *peer)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].IP.To16(), result[j].IP.To16()) < 0
	})
	return result, nil
}

// sendPasses pings silent hosts once plus once per retry, waiting for
// replies after each pass
func (s *Sweeper) sendPasses(ctx context.Context, sess *session, ips []net.IP) {
	for attempt := 0; attempt <= s.retries; attempt++ {
		for _, ip := range ips {
			if ctx.Err() != nil {
				return
			}
			if sess.peers.Has(ip.String()) {
				continue
			}
			if err := sess.send(ip); err != nil {
				gologger.Debug().Msgf("echo to %s failed: %v", ip, err)
			}
			if s.interval > 0 {
				time.Sleep(s.interval)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.timeout):
		}
	}
}

// openSession prefers a raw socket and falls back to an unprivileged
// datagram ICMP socket
func openSession(isIPv6 bool) (*session, error) {
	rawNetwork, dgramNetwork, address := "ip4:icmp", "udp4", "0.0.0.0"
	if isIPv6 {
		rawNetwork, dgramNetwork, address = "ip6:ipv6-icmp", "udp6", "::"
	}

	privileged := true
	conn, err := icmp.ListenPacket(rawNetwork, address)
	if err != nil {
		privileged = false
		var dgramErr error
		conn, dgramErr = icmp.ListenPacket(dgramNetwork, address)
		if dgramErr != nil {
			return nil, fmt.Errorf("failed to create shared ICMP connection: %w", err)
		}
	}

	return &session{
		conn:       conn,
		isIPv6:     isIPv6,
		privileged: privileged,
		id:         rand.IntN(0xffff) + 1,
		pending:    mapsutil.NewSyncLockMap[pendingKey, *pendingPing](),
		peers:      mapsutil.NewSyncLockMap[string, *Peer](),
	}, nil
}

// send writes one echo request through the shared connection
func (s *session) send(ip net.IP) error {
	seq := int(s.seq.Add(1) & 0xffff)
	msg := echoRequest(s.id, seq, s.isIPv6)
	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("failed to marshal ICMP message: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !s.privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	key := pendingKey{ip: ip.String(), seq: seq}
	_ = s.pending.Set(key, &pendingPing{IP: ip, Start: time.Now()})
	if _, err := s.conn.WriteTo(msgBytes, dst); err != nil {
		s.pending.Delete(key)
		return err
	}
	return nil
}

// receive matches echo replies until stop is closed
func (s *session) receive(ctx context.Context, stop <-chan struct{}) {
	protocol := ipv4.ICMPTypeEchoReply.Protocol()
	if s.isIPv6 {
		protocol = ipv6.ICMPTypeEchoReply.Protocol()
	}

	reply := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			continue
		}
		n, peer, err := s.conn.ReadFrom(reply)
		if err != nil {
			continue
		}
		rm, err := icmp.ParseMessage(protocol, reply[:n])
		if err != nil {
			continue
		}
		s.match(rm, peer)
	}
}

// match records the peer of a reply that answers one of our pending pings
func (s *session) match(rm *icmp.Message, peer net.Addr) bool {
	if rm.Type != ipv4.ICMPTypeEchoReply && rm.Type != ipv6.ICMPTypeEchoReply {
		return false
	}
	echo, ok := rm.Body.(*icmp.Echo)
	if !ok {
		return false
	}
	// the kernel rewrites the ID of datagram sockets
	if s.privileged && echo.ID != s.id {
		return false
	}

	var peerIP net.IP
	switch addr := peer.(type) {
	case *net.IPAddr:
		peerIP = addr.IP
	case *net.UDPAddr:
		peerIP = addr.IP
	}
	if peerIP == nil {
		return false
	}

	key := pendingKey{ip: peerIP.String(), seq: echo.Seq}
	pending, exists := s.pending.Get(key)
	if !exists {
		return false
	}

	_ = s.peers.Set(pending.IP.String(), &Peer{IP: pending.IP, RTT: time.Since(pending.Start)})
	s.pending.Delete(key)
	return true
}

func echoRequest(id, seq int, isIPv6 bool) *icmp.Message {
	var msgType icmp.Type = ipv4.ICMPTypeEcho
	if isIPv6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}
	return &icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: payload},
	}
}
