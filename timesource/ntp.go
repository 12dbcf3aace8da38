// Package timesource answers "what time is it right now".  It queries an
// NTP server with bounded retries, falls back to the shield's battery-backed
// DS1307 when the network is down, and keeps the single authoritative
// wall-clock offset for the rest of the program.
package timesource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/trace"
)

const (
	ntpPacketSize = 48
	// Seconds between the NTP epoch (1900-01-01) and the Unix epoch.
	ntpUnixOffset = 2208988800

	ntpRetries   = 20
	ntpRetryWait = 300 * time.Millisecond
	ntpReplyWait = time.Second
)

// Canonical ports for the reference configuration.
const (
	DefaultServer    = "time.nist.gov:123"
	DefaultLocalPort = 2390
)

var (
	ntpAttemptsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ntp_attempts_total",
		Help: "count of NTP request attempts, including retries",
	})
	ntpFailuresMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ntp_attempt_failures_total",
		Help: "count of NTP attempts that yielded no usable reply",
	})
)

// NTPClient queries one NTP server from a fixed local UDP port.
type NTPClient struct {
	server string
	conn   *net.UDPConn
	events trace.EventLog
}

// NewNTPClient binds the local query port and returns a client for the
// given "host:port" server.
func NewNTPClient(server string, localPort int) (*NTPClient, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("bind local ntp port %d: %w", localPort, err)
	}
	return &NTPClient{
		server: server,
		conn:   conn,
		events: trace.NewEventLog("service", "ntp"),
	}, nil
}

// Close releases the local port.
func (c *NTPClient) Close() error {
	c.events.Finish()
	return c.conn.Close()
}

// ntpRequest builds the fixed 48-byte query: LI/version/mode, polling
// interval, and peer clock precision, plus the reference identifier the
// reference firmware sends.
func ntpRequest() []byte {
	buf := make([]byte, ntpPacketSize)
	buf[0] = 0xE3
	buf[2] = 0x06
	buf[3] = 0xEC
	copy(buf[12:16], "1N14")
	return buf
}

// decodeNTPReply interprets bytes 40-43 of a reply as a big-endian count
// of seconds since 1900 and converts it to Unix time.
func decodeNTPReply(buf []byte) (time.Time, error) {
	if len(buf) != ntpPacketSize {
		return time.Time{}, fmt.Errorf("reply is %d bytes, want %d", len(buf), ntpPacketSize)
	}
	secs := binary.BigEndian.Uint32(buf[40:44])
	if secs == 0 {
		return time.Time{}, errors.New("reply has zero transmit timestamp")
	}
	return time.Unix(int64(secs)-ntpUnixOffset, 0), nil
}

// query makes a single request attempt.
func (c *NTPClient) query(addr *net.UDPAddr) (time.Time, error) {
	if _, err := c.conn.WriteToUDP(ntpRequest(), addr); err != nil {
		return time.Time{}, fmt.Errorf("send request: %w", err)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(ntpReplyWait)); err != nil {
		return time.Time{}, fmt.Errorf("set read deadline: %w", err)
	}
	buf := make([]byte, ntpPacketSize+1)
	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return time.Time{}, fmt.Errorf("read reply: %w", err)
	}
	t, err := decodeNTPReply(buf[:n])
	if err != nil {
		return time.Time{}, fmt.Errorf("decode reply: %w", err)
	}
	return t, nil
}

// Query obtains the current time from the server, retrying transient
// failures up to the attempt bound.  A malformed or absent reply is never
// fatal; it just burns an attempt.
func (c *NTPClient) Query(ctx context.Context) (time.Time, error) {
	addr, err := net.ResolveUDPAddr("udp", c.server)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve %q: %w", c.server, err)
	}
	var lastErr error
	for i := 0; i < ntpRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return time.Time{}, fmt.Errorf("waiting to retry: %w", ctx.Err())
			case <-time.After(ntpRetryWait):
			}
		}
		ntpAttemptsMetric.Inc()
		t, err := c.query(addr)
		if err == nil {
			c.events.Printf("got time %v from %v", t, addr)
			return t, nil
		}
		lastErr = err
		ntpFailuresMetric.Inc()
		c.events.Errorf("attempt %d: %v", i+1, err)
		logrus.Debugf("problem getting NTP time, retrying: %v", err)
	}
	return time.Time{}, fmt.Errorf("no usable reply in %d attempts: %w", ntpRetries, lastErr)
}
