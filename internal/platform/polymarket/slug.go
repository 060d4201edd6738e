package polymarket

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// ExtractMarketID derives a market id from user input. Accepted forms:
//
//	https://polymarket.com/event/<slug>[/...]  -> <slug>
//	https://polymarket.com/market/<slug>[/...] -> <slug>
//	<slug>                                     -> <slug>
//
// Anything else returns domain.ErrInvalidMarketURL.
func ExtractMarketID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("polymarket: empty input: %w", domain.ErrInvalidMarketURL)
	}

	path := raw
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.Host != "") {
		path = u.Path
	}

	parts := splitPath(path)
	switch {
	case len(parts) >= 2 && (parts[0] == "event" || parts[0] == "market"):
		return parts[1], nil
	case len(parts) == 1:
		return parts[0], nil
	default:
		return "", fmt.Errorf("polymarket: cannot derive market id from %q: %w", raw, domain.ErrInvalidMarketURL)
	}
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
