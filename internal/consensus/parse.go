package consensus

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"torpathsim/internal/model"
)

// publishedLayout is the date/time format used on router status lines.
const publishedLayout = "2006-01-02 15:04:05"

// ErrTruncated is returned together with the relays read so far when the
// underlying reader fails part way through a document.
var ErrTruncated = errors.New("consensus truncated")

// ParseFile reads a consensus document from disk.
func ParseFile(path string) ([]*model.Relay, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads router status entries from a network-status consensus.
//
// An "r" line starts a new relay; the "s", "v", "w" and "p" lines that
// follow it fill in flags, version, bandwidth and exit policy summary. Both
// the full ("r" with a descriptor digest) and the microdescriptor ("r"
// without one) flavours are accepted. Lines the simulator does not use are
// skipped.
func Parse(r io.Reader) ([]*model.Relay, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		relays  []*model.Relay
		current *model.Relay
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		switch {
		case strings.HasPrefix(line, "r "):
			relay, err := parseRouterLine(line)
			if err != nil {
				return nil, fmt.Errorf("invalid record at line %d: %w",
					lineNo, err)
			}
			relays = append(relays, relay)
			current = relay

		case current == nil:
			continue

		case strings.HasPrefix(line, "s "):
			current.Flags = model.ParseFlags(strings.Fields(line[2:]))

		case strings.HasPrefix(line, "v "):
			current.Version = strings.TrimSpace(line[2:])

		case strings.HasPrefix(line, "w "):
			bw, ok, err := parseBandwidth(line[2:])
			if err != nil {
				return nil, fmt.Errorf("invalid bandwidth at line "+
					"%d: %w", lineNo, err)
			}
			if ok {
				current.Bandwidth = bw
			}

		case strings.HasPrefix(line, "p "):
			current.ExitPolicy = strings.TrimSpace(line[2:])

		// The footer ends the router status section.
		case strings.HasPrefix(line, "directory-footer"):
			current = nil
		}
	}

	if err := sc.Err(); err != nil {
		log.Warnf("Consensus read failed after %d lines, keeping %d "+
			"relays: %v", lineNo, len(relays), err)
		return relays, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	log.Debugf("Parsed %d relays from %d consensus lines", len(relays),
		lineNo)

	return relays, nil
}

// parseRouterLine handles
//
//	r <nick> <identity> <digest> <date> <time> <ip> <orport> <dirport>
//	r <nick> <identity> <date> <time> <ip> <orport> <dirport>
func parseRouterLine(line string) (*model.Relay, error) {
	parts := strings.Fields(line)

	var rest []string
	switch len(parts) {
	case 9:
		rest = parts[4:]
	case 8:
		rest = parts[3:]
	default:
		return nil, fmt.Errorf("router line has %d fields", len(parts))
	}

	orPort, err := strconv.Atoi(rest[3])
	if err != nil {
		return nil, fmt.Errorf("or port: %w", err)
	}
	dirPort, err := strconv.Atoi(rest[4])
	if err != nil {
		return nil, fmt.Errorf("dir port: %w", err)
	}

	relay := &model.Relay{
		Nickname:    parts[1],
		Fingerprint: Fingerprint(parts[2]),
		Address:     rest[2],
		ORPort:      orPort,
		DirPort:     dirPort,
	}

	published, err := time.Parse(publishedLayout, rest[0]+" "+rest[1])
	if err != nil {
		log.Warnf("Relay %s: unparsable publication time %q %q",
			relay.Nickname, rest[0], rest[1])
	} else {
		relay.Published = published.UTC()
	}

	return relay, nil
}

// parseBandwidth extracts Bandwidth=<n> from a "w" line. ok is false when
// the line carries no Bandwidth keyword.
func parseBandwidth(s string) (int64, bool, error) {
	for _, kv := range strings.Fields(s) {
		val, found := strings.CutPrefix(kv, "Bandwidth=")
		if !found {
			continue
		}
		bw, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false, err
		}
		if bw < 0 {
			return 0, false, fmt.Errorf("negative bandwidth %d", bw)
		}
		return bw, true, nil
	}
	return 0, false, nil
}

// Fingerprint converts the unpadded base64 identity digest from a router
// line into the familiar upper-case hex fingerprint. Identities that do not
// decode are returned unchanged.
func Fingerprint(identity string) string {
	raw, err := base64.RawStdEncoding.DecodeString(
		strings.TrimRight(identity, "="),
	)
	if err != nil || len(raw) == 0 {
		return identity
	}
	return strings.ToUpper(hex.EncodeToString(raw))
}
