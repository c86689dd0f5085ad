package middleware

import (
	"net/netip"
	"strings"

	domainerrors "phonebook/internal/domain/errors"
	"phonebook/internal/errors"

	"github.com/labstack/echo/v4"
)

// IPAllowlist admits only clients whose IP is in one of the configured prefixes.
// An empty list admits everyone.
type IPAllowlist struct {
	prefixes []netip.Prefix
}

// NewIPAllowlist parses entries that are either single addresses or CIDR ranges.
func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid allowed ip range %q", entry)
			}
			prefixes = append(prefixes, prefix.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid allowed ip %q", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return &IPAllowlist{prefixes: prefixes}, nil
}

// Allows reports whether ip is admitted.
func (a *IPAllowlist) Allows(ip string) bool {
	if len(a.prefixes) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range a.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// Handle rejects requests from addresses outside the allowlist with 403.
func (a *IPAllowlist) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.Allows(c.RealIP()) {
			return domainerrors.ErrForbidden.WithDetails("client address not allowed")
		}

		return next(c)
	}
}
