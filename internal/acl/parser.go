package acl

import (
	"bufio"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Parser reads the "SHARE:\n  ADDRESS PATH OPERATIONS" grammar
// documented in magma_flare_types.h into a slice of Share.
type Parser struct{}

// Parse reads every share and its rules from r. A share header is any
// non-indented, non-comment line ending in ':'; every indented line
// that follows, until the next share header, is one of its rules.
func (Parser) Parse(r io.Reader) ([]Share, error) {
	scanner := bufio.NewScanner(r)

	var shares []Share
	var current *Share
	line := 0

	for scanner.Scan() {
		line++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indented := raw[0] == ' ' || raw[0] == '\t'
		if !indented {
			name := strings.TrimSuffix(trimmed, ":")
			if name == trimmed {
				return nil, errors.Errorf("line %d: expected a share header ending in ':'", line)
			}
			shares = append(shares, Share{Name: name})
			current = &shares[len(shares)-1]
			continue
		}

		if current == nil {
			return nil, errors.Errorf("line %d: rule outside any share", line)
		}

		rule, err := parseRule(trimmed, line)
		if err != nil {
			return nil, err
		}
		current.Rules = append(current.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read acl file")
	}
	return shares, nil
}

func parseRule(line string, lineNo int) (Rule, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Rule{}, errors.Errorf("line %d: expected ADDRESS PATH OPERATIONS, got %q", lineNo, line)
	}

	ipnet, err := parseNetblock(fields[0])
	if err != nil {
		return Rule{}, errors.Wrapf(err, "line %d", lineNo)
	}

	op := Operation(fields[2][0])
	if op != OpNone && op != OpRead && op != OpWrite {
		return Rule{}, errors.Errorf("line %d: unknown operation %q", lineNo, fields[2])
	}

	return Rule{Net: ipnet, Path: fields[1], Allow: op, Line: lineNo}, nil
}

// parseNetblock accepts either a bare IPv4 address (treated as a /32)
// or a CIDR block.
func parseNetblock(s string) (*net.IPNet, error) {
	if strings.Contains(s, "/") {
		_, ipnet, err := net.ParseCIDR(s)
		return ipnet, err
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, errors.Errorf("invalid address %q", s)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}
