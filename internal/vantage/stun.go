package vantage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/stun/v3"

	"torpathsim/internal/addrutil"
)

const (
	NATTypeUnknown          = "unknown"
	NATTypeSymmetric        = "symmetric"
	NATTypeConeOrRestricted = "cone_or_restricted"
)

// ErrNoServers is returned by Probe when it is given nothing to ask.
var ErrNoServers = errors.New("no STUN servers provided")

// Result is what the probe learned about the client's network position.
type Result struct {
	// Addr is the public ip:port the first answering server saw.
	Addr string

	// NATType is one of the NATType constants.
	NATType string

	// Answers holds every mapped address that came back, in server order.
	Answers []string
}

// Host returns the public IP without the port.
func (r Result) Host() string {
	return Host(r.Addr)
}

// Probe asks each STUN server in turn for the client's public mapped
// address. Servers that fail are logged and skipped; Probe only errors when
// none answers or ctx is done.
func Probe(ctx context.Context, servers []string, timeout time.Duration) (Result, error) {
	if len(servers) == 0 {
		return Result{NATType: NATTypeUnknown}, ErrNoServers
	}

	answers := make([]string, 0, len(servers))
	var lastErr error
	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			return Result{NATType: NATTypeUnknown}, err
		}

		addr, err := probeServer(ctx, server, timeout)
		if err != nil {
			log.Warnf("STUN server %q failed: %v", server, err)
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}
		log.Debugf("STUN server %s mapped us to %s", server, addr)
		answers = append(answers, addr)
	}

	if len(answers) == 0 {
		return Result{NATType: NATTypeUnknown}, lastErr
	}

	res := Result{
		Addr:    answers[0],
		NATType: Classify(answers),
		Answers: answers,
	}
	log.Infof("Public address %s (%s, %d/%d servers answered)", res.Addr,
		res.NATType, len(answers), len(servers))

	return res, nil
}

// Classify infers NAT type by comparing mapped addresses from multiple
// servers.
func Classify(addrs []string) string {
	if len(addrs) < 2 {
		return NATTypeUnknown
	}
	first := addrs[0]
	for _, addr := range addrs[1:] {
		if addr != first {
			return NATTypeSymmetric
		}
	}
	return NATTypeConeOrRestricted
}

// Host strips the port from a mapped address so it can be geo-resolved.
func Host(addr string) string {
	return addrutil.Host(addr)
}

// serverURI accepts host:port as well as a full stun: URI.
func serverURI(server string) (*stun.URI, error) {
	raw := strings.TrimSpace(server)
	if raw == "" {
		return nil, errors.New("empty STUN server")
	}
	if !strings.HasPrefix(raw, "stun:") {
		raw = "stun:" + raw
	}
	return stun.ParseURI(raw)
}

// mapping is the outcome of one binding transaction.
type mapping struct {
	addr string
	err  error
}

func probeServer(ctx context.Context, server string, timeout time.Duration) (string, error) {
	uri, err := serverURI(server)
	if err != nil {
		return "", err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := stun.DialURI(uri, &stun.DialConfig{})
	if err != nil {
		return "", err
	}
	defer client.Close()

	done := make(chan mapping, 1)
	go func() {
		done <- bind(client)
	}()

	select {
	case m := <-done:
		return m.addr, m.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// bind runs a single binding request. Client.Do blocks until the handler has
// run, so m is complete when it returns.
func bind(client *stun.Client) mapping {
	var m mapping
	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	err := client.Do(req, func(ev stun.Event) {
		if ev.Error != nil {
			m.err = ev.Error
			return
		}
		var addr stun.XORMappedAddress
		if err := addr.GetFrom(ev.Message); err != nil {
			m.err = err
			return
		}
		m.addr = addr.String()
	})
	if err != nil && m.err == nil {
		m.err = err
	}
	return m
}
