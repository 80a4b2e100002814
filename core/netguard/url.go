// Package netguard vets URLs received from the backend before they are shown
// to the user or opened.
package netguard

import (
	"errors"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrPrivateNetworkBlocked = errors.New("netguard: private network target")
	ErrRestrictedTarget      = errors.New("netguard: restricted target")
	ErrInsecureScheme        = errors.New("netguard: insecure scheme")
)

type Policy struct {
	AllowInsecure bool
	AllowPrivate  bool
	AllowLoopback bool
}

// DevPolicy accepts local test gateways.
func DevPolicy() Policy {
	return Policy{AllowInsecure: true, AllowPrivate: true, AllowLoopback: true}
}

// ValidateURL checks scheme, credentials and IP-literal hosts. Names are not
// resolved: the URL is opened by the user's browser, not by this process.
func ValidateURL(raw string, policy Policy) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrRestrictedTarget
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !policy.AllowInsecure {
			return ErrInsecureScheme
		}
	default:
		return ErrRestrictedTarget
	}
	if u.User != nil {
		return ErrRestrictedTarget
	}
	host := strings.Trim(u.Hostname(), "[]")
	if host == "" {
		return ErrRestrictedTarget
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		if policy.AllowLoopback {
			return nil
		}
		return ErrRestrictedTarget
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return validateAddr(addr, policy)
	}
	return nil
}

var (
	pfxRFC1918_10    = mustPrefix("10.0.0.0/8")
	pfxRFC1918_172   = mustPrefix("172.16.0.0/12")
	pfxRFC1918_192   = mustPrefix("192.168.0.0/16")
	pfxCGNAT         = mustPrefix("100.64.0.0/10")
	pfxLinkLocal4    = mustPrefix("169.254.0.0/16")
	pfxLoopback4     = mustPrefix("127.0.0.0/8")
	pfxMulticast4    = mustPrefix("224.0.0.0/4")
	pfxULA           = mustPrefix("fc00::/7")
	pfxLinkLocal6    = mustPrefix("fe80::/10")
	pfxMulticast6    = mustPrefix("ff00::/8")
	pfxMetadataAWSv6 = mustPrefix("fd00:ec2::254/128")
)

func validateAddr(addr netip.Addr, policy Policy) error {
	addr = addr.Unmap()
	if !addr.IsValid() || addr.IsUnspecified() {
		return ErrRestrictedTarget
	}
	if pfxMulticast4.Contains(addr) || pfxMulticast6.Contains(addr) {
		return ErrRestrictedTarget
	}
	if pfxLinkLocal4.Contains(addr) || pfxLinkLocal6.Contains(addr) || pfxMetadataAWSv6.Contains(addr) {
		return ErrRestrictedTarget
	}
	if pfxLoopback4.Contains(addr) || addr.IsLoopback() {
		if policy.AllowLoopback {
			return nil
		}
		return ErrRestrictedTarget
	}
	if isPrivate(addr) && !policy.AllowPrivate {
		return ErrPrivateNetworkBlocked
	}
	return nil
}

func isPrivate(addr netip.Addr) bool {
	if addr.Is4() {
		return pfxRFC1918_10.Contains(addr) || pfxRFC1918_172.Contains(addr) || pfxRFC1918_192.Contains(addr) || pfxCGNAT.Contains(addr)
	}
	return pfxULA.Contains(addr) || addr.IsPrivate()
}

func mustPrefix(raw string) netip.Prefix {
	p, err := netip.ParsePrefix(raw)
	if err != nil {
		panic(err)
	}
	return p
}
