package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wahke/ET-Masterserver/internal/registry"
	"github.com/wahke/ET-Masterserver/internal/wire"
)

const (
	syncInterval       = 300 * time.Second
	upstreamRecvWindow = 5 * time.Second
	upstreamPort       = 27950
	minUsefulReplySize = 24
)

// UpstreamSync periodically queries a set of upstream master servers and
// merges any endpoints they report, as stub records, into the registry.
type UpstreamSync struct {
	reg       *registry.Registry
	log       logrus.FieldLogger
	protocols []int
	masters   []string
	port      int // tests override this to point at a loopback fake master
}

// NewUpstreamSync constructs an UpstreamSync. masters is the list of
// upstream hostnames to query (the second element of each configured
// master_servers tuple is intentionally ignored, per the source behavior).
// Every upstream is queried on UDP port 27950, per spec.md §4.5.
func NewUpstreamSync(reg *registry.Registry, log logrus.FieldLogger, protocols []int, masters []string) *UpstreamSync {
	return &UpstreamSync{reg: reg, log: log, protocols: protocols, masters: masters, port: upstreamPort}
}

// Run ticks every syncInterval until ctx is canceled.
func (u *UpstreamSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.syncOnce(ctx)
		}
	}
}

// syncOnce queries every configured upstream, unions the endpoints they
// return, and inserts a stub record for any endpoint not already known.
// Existing records are left untouched; their info comes from this
// system's own Prober, not from upstream.
func (u *UpstreamSync) syncOnce(ctx context.Context) {
	union := make(map[wire.Endpoint]struct{})
	for _, host := range u.masters {
		found, err := u.fetchFromMaster(ctx, host)
		if err != nil {
			u.log.WithError(err).WithField("master", host).Warn("upstream sync: fetch failed")
			continue
		}
		for ep := range found {
			union[ep] = struct{}{}
		}
	}

	for ep := range union {
		if err := u.reg.InsertStub(ep); err != nil {
			u.log.WithError(err).WithField("endpoint", ep).Error("upstream sync: insert stub failed")
		}
	}
}

// fetchFromMaster tries each configured protocol against host in order,
// stopping at the first protocol that yields more than
// minUsefulReplySize bytes — whether or not that reply actually parses
// cleanly. A garbage 25-byte reply still counts as "tried" for this
// upstream; this mirrors the original implementation and is preserved
// deliberately rather than generalized to "first protocol that parses".
func (u *UpstreamSync) fetchFromMaster(ctx context.Context, host string) (map[wire.Endpoint]struct{}, error) {
	addr := net.JoinHostPort(host, fmt.Sprint(u.port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	for _, protocol := range u.protocols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := conn.Write(wire.EncodeGetServersRequest(protocol)); err != nil {
			u.log.WithError(err).WithField("master", host).Warn("upstream sync: send failed")
			continue
		}

		data := u.accumulate(conn)
		if len(data) > minUsefulReplySize {
			endpoints := wire.ParseGetServersResponse(data)
			found := make(map[wire.Endpoint]struct{}, len(endpoints))
			for _, ep := range endpoints {
				found[ep] = struct{}{}
			}
			return found, nil
		}
	}
	return nil, nil
}

// accumulate reads datagrams from conn until a recv times out or the most
// recently received datagram ends with the 0xFFFFFFFF sentinel, per
// spec.md §4.5.
func (u *UpstreamSync) accumulate(conn net.Conn) []byte {
	var all bytes.Buffer
	buf := make([]byte, 8192)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(upstreamRecvWindow)); err != nil {
			return all.Bytes()
		}
		n, err := conn.Read(buf)
		if err != nil {
			return all.Bytes()
		}
		all.Write(buf[:n])
		if bytes.HasSuffix(buf[:n], wire.Prefix) {
			return all.Bytes()
		}
	}
}
