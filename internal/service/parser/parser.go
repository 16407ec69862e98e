package parser

import (
	"regexp"
	"strconv"
	"strings"

	"SigRelay/internal/domain/models"
)

// Best-effort extraction of trade intents from channel text. Absence of a
// field means "not found", never an error. All functions are pure.

var (
	callRe  = regexp.MustCompile(`(?i)\b(call|buy|up)\b`)
	putRe   = regexp.MustCompile(`(?i)\b(put|sell|down)\b`)
	assetRe = regexp.MustCompile(`\b([A-Z]{3})/?([A-Z]{3})\b`)

	// "5m", "30 s", "1h" style tokens, and the "M5" prefix form some
	// channels use.
	expiryRe       = regexp.MustCompile(`(?i)\b(\d+)\s*(s|sec|secs|m|min|mins|h|hr)\b`)
	expiryPrefixRe = regexp.MustCompile(`(?i)\bm(\d+)\b`)
)

// Parse extracts asset, direction and expiry from raw text. The returned
// signal carries the original text; the caller stamps ReceivedAt and the
// channel id.
func Parse(text string) models.Signal {
	return models.Signal{
		Raw:           text,
		Asset:         parseAsset(text),
		Direction:     parseDirection(text),
		ExpirySeconds: parseExpiry(text),
	}
}

func parseDirection(text string) models.Direction {
	switch {
	case callRe.MatchString(text):
		return models.DirectionCall
	case putRe.MatchString(text):
		return models.DirectionPut
	default:
		return models.DirectionNone
	}
}

// parseAsset matches ticker-like six-letter pairs, with or without a
// slash. Uppercase only: lowercase words of the right length ("random")
// must not be mistaken for tickers.
func parseAsset(text string) string {
	m := assetRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

func parseExpiry(text string) int {
	if m := expiryRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0
		}
		switch strings.ToLower(m[2])[0] {
		case 's':
			return n
		case 'm':
			return n * 60
		case 'h':
			return n * 3600
		}
	}
	if m := expiryPrefixRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0
		}
		return n * 60
	}
	return 0
}
