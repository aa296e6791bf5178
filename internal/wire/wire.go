// Package wire implements the out-of-band datagram framing used by the
// Enemy Territory master server protocol: the four-byte 0xFF prefix,
// getinfo/infoResponse key-value strings, and the binary getservers/
// getserversResponse endpoint lists.
//
// The protocol predates any general-purpose codec; every message is a
// handful of fixed bytes followed by either a backslash-delimited string
// or a flat array of 6-byte (IPv4 + port) slots. There is nothing here a
// serialization library would simplify, so encoding is done directly on
// byte slices with manual big-endian byte packing.
package wire

import (
	"bytes"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/text/encoding/charmap"
)

// Prefix is the four-byte out-of-band marker that precedes every message
// in this protocol family.
var Prefix = []byte{0xff, 0xff, 0xff, 0xff}

const (
	getInfoLiteral             = "getinfo"
	infoResponseLiteral        = "infoResponse"
	getServersLiteral          = "getservers"
	getServersResponseLiteral  = "getserversResponse"
	getServersResponseHeaderSz = 4 + len(getServersResponseLiteral) // 22 bytes
	endpointSlotSize           = 6                                 // 4 bytes IPv4 + 2 bytes port
)

// versionSynthesisFallback is the fixed version string substituted when an
// infoResponse omits "version" but reports protocol 84. This is a
// compatibility hack for game servers of that era that never set
// "version" in their info string; it must not be generalized to other
// protocols.
const versionSynthesisFallback = "ET 2.60b linux-i386 May 8 2006"

// decodeLatin1 decodes a raw datagram payload as ISO-8859-1, the encoding
// the legacy protocol assumes (server names may contain high bytes).
// ISO-8859-1 maps every byte 1:1 to its Unicode code point, so this never
// fails in practice.
func decodeLatin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return string(b)
	}
	return s
}

// EncodeGetInfoRequest builds the "getinfo 0" probe datagram. The challenge
// token is a fixed literal; this system ignores whatever challenge an
// infoResponse echoes back.
func EncodeGetInfoRequest() []byte {
	return append(append([]byte{}, Prefix...), []byte(getInfoLiteral+" 0")...)
}

// HasPrefix reports whether payload begins with the out-of-band marker.
func HasPrefix(payload []byte) bool {
	return bytes.HasPrefix(payload, Prefix)
}

// ClassifyInbound strips the out-of-band prefix and surrounding whitespace
// and returns the decoded payload along with which handler should process
// it. The listener uses this to dispatch without parsing the body twice.
func ClassifyInbound(payload []byte) (body string, kind string) {
	raw := payload
	if bytes.HasPrefix(raw, Prefix) {
		raw = raw[len(Prefix):]
	}
	trimmed := trimSpace(decodeLatin1(raw))
	switch {
	case hasPrefixWord(trimmed, "heartbeat"):
		return trimmed, "heartbeat"
	case hasPrefixWord(trimmed, getServersLiteral):
		return trimmed, "getservers"
	default:
		return trimmed, "unknown"
	}
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && isSpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func hasPrefixWord(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// InfoResponse is the parsed key-value bag from an infoResponse datagram.
// Unknown keys are preserved but ignored by ExtractProbeInfo.
type InfoResponse map[string]string

// ParseInfoResponse locates the infoResponse marker in payload and parses
// the backslash-delimited key/value tail that follows it. A trailing lone
// key (odd token count) is dropped rather than treated as an error.
//
// Returns ok=false if the literal "infoResponse" is not present anywhere
// in the decoded payload.
func ParseInfoResponse(payload []byte) (InfoResponse, bool) {
	body := decodeLatin1(payload)
	idx := bytes.Index([]byte(body), []byte(infoResponseLiteral))
	if idx < 0 {
		return nil, false
	}
	tail := body[idx+len(infoResponseLiteral):]
	tokens := splitBackslash(tail)
	// tokens[0] is whatever precedes the first backslash (normally the
	// newline after the marker, or the whole remainder if there is no
	// backslash); drop it like
	// the original parser's data.split("\\")[1:].
	if len(tokens) > 0 {
		tokens = tokens[1:]
	}
	info := make(InfoResponse, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		info[tokens[i]] = tokens[i+1]
	}
	return info, true
}

func splitBackslash(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ProbeInfo is the structured subset of an infoResponse this system cares
// about, with integer coercion and the ET-specific version fallback
// already applied.
type ProbeInfo struct {
	Name       string
	Version    string
	Mod        string
	Map        string
	Players    uint
	MaxPlayers uint
}

// ExtractProbeInfo projects a ProbeInfo out of a parsed InfoResponse,
// applying field defaults and the protocol-84 version synthesis rule.
// This rule is deliberately not generalized to other protocol numbers.
func ExtractProbeInfo(info InfoResponse) ProbeInfo {
	version := info["version"]
	if version == "" {
		if info["protocol"] == "84" {
			version = versionSynthesisFallback
		} else {
			version = "Unknown"
		}
	}
	return ProbeInfo{
		Name:       orDefault(info["hostname"], "Unknown"),
		Version:    version,
		Mod:        orDefault(info["game"], "Unknown"),
		Map:        orDefault(info["mapname"], "Unknown"),
		Players:    parseUintOrZero(info["clients"]),
		MaxPlayers: parseUintOrZero(info["sv_maxclients"]),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseUintOrZero(s string) uint {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

// EncodeGetServersRequest builds a "getservers <protocol> empty full"
// datagram directed at an upstream master.
func EncodeGetServersRequest(protocol int) []byte {
	body := fmt.Sprintf("%s %d empty full", getServersLiteral, protocol)
	return append(append([]byte{}, Prefix...), []byte(body)...)
}

// Endpoint identifies a game server by IPv4 dotted-quad and UDP port.
type Endpoint struct {
	IP   string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// EncodeGetServersResponse packs endpoints into a getserversResponse
// datagram: 4-byte prefix, the literal, then one 6-byte big-endian
// (IPv4, port) slot per endpoint, terminated by a trailing 0xFFFFFFFF
// sentinel. Endpoints whose IP does not parse as four IPv4 octets are
// skipped rather than aborting the whole reply.
func EncodeGetServersResponse(endpoints []Endpoint) []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(Prefix)
	buf.WriteString(getServersResponseLiteral)
	for _, ep := range endpoints {
		octets := net.ParseIP(ep.IP).To4()
		if octets == nil {
			continue
		}
		buf.Write(octets)
		buf.WriteByte(byte(ep.Port >> 8))
		buf.WriteByte(byte(ep.Port))
	}
	buf.Write(Prefix)
	return buf.Bytes()
}

// ParseGetServersResponse decodes a getserversResponse payload into the
// set of endpoints it carries. It tolerates a payload that arrived across
// multiple recvfrom calls and a trailing sentinel: after skipping the
// 22-byte header (prefix plus literal) it consumes non-overlapping 6-byte slots until fewer than
// 6 bytes remain, which naturally drops the closing 0xFFFFFFFF sentinel as
// a short final slot.
func ParseGetServersResponse(payload []byte) []Endpoint {
	body := payload
	if bytes.HasPrefix(body, Prefix) && bytes.HasPrefix(body[4:], []byte(getServersResponseLiteral)) {
		body = body[getServersResponseHeaderSz:]
	}
	var endpoints []Endpoint
	for i := 0; i+endpointSlotSize <= len(body); i += endpointSlotSize {
		octets := body[i : i+4]
		port := uint16(body[i+4])<<8 | uint16(body[i+5])
		ip := fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3])
		endpoints = append(endpoints, Endpoint{IP: ip, Port: port})
	}
	return endpoints
}
