package netutil

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// candidate can be listened on.
var ErrNoBindAddr = errors.New("no available bind addresses")

// SelectBindAddr picks an available bind address based on the preferred
// address and the fallback list.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range ExpandCandidates(preferred, candidates) {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", ErrNoBindAddr
}

// ExpandCandidates turns bare ports ("8191") into host:port using the host
// of preferred, defaulting to 127.0.0.1.
func ExpandCandidates(preferred string, candidates []string) []string {
	host := "127.0.0.1"
	if h, _, err := net.SplitHostPort(preferred); err == nil && h != "" {
		host = h
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		switch {
		case c == "":
			continue
		case strings.Contains(c, ":"):
			out = append(out, c)
		default:
			out = append(out, net.JoinHostPort(host, c))
		}
	}
	return out
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
