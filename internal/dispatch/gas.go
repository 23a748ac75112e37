package dispatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultGasNetwork  = "ethereum"
	defaultGasCurrency = "USD"
)

// gasNetworkPhrases maps lower-case network phrases to the agent's network ids.
var gasNetworkPhrases = map[string]string{
	"ethereum":            "ethereum",
	"ethereum mainnet":    "ethereum",
	"mainnet":             "ethereum",
	"eth":                 "ethereum",
	"base":                "base",
	"base mainnet":        "base",
	"binance smart chain": "bsc",
	"binance chain":       "bsc",
	"bnb chain":           "bsc",
	"binance":             "bsc",
	"bsc":                 "bsc",
	"bnb":                 "bsc",
	"linea":               "linea",
	"plasma":              "plasma",
	"polygon":             "plasma",
	"polygon plasma":      "plasma",
	"polygon pos":         "plasma",
	"matic":               "plasma",
}

// gasNetworkKeywords holds every word that appears in a network phrase.
var gasNetworkKeywords = func() map[string]bool {
	words := make(map[string]bool)
	for phrase := range gasNetworkPhrases {
		for _, w := range strings.Fields(phrase) {
			words[w] = true
		}
	}
	return words
}()

var gasCurrencyStopwords = map[string]bool{
	"chain":   true,
	"smart":   true,
	"network": true,
	"mainnet": true,
}

// isCurrencyCandidate reports whether token reads as a fiat/crypto ticker:
// 2-5 letters and not part of a network name.
func isCurrencyCandidate(token string) bool {
	if token == "" {
		return false
	}
	lowered := strings.ToLower(token)
	if gasNetworkKeywords[lowered] || gasCurrencyStopwords[lowered] {
		return false
	}
	for _, r := range lowered {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	n := utf8.RuneCountInString(lowered)
	return n >= 2 && n <= 5
}

// normalizeGasNetwork resolves tokens to a network id: the whole phrase,
// then the longest leading phrase, then the last word that names a network.
func normalizeGasNetwork(tokens []string) string {
	parts := strings.Fields(strings.ToLower(strings.Join(tokens, " ")))
	if len(parts) == 0 {
		return defaultGasNetwork
	}

	for size := len(parts); size > 0; size-- {
		if id, ok := gasNetworkPhrases[strings.Join(parts[:size], " ")]; ok {
			return id
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if id, ok := gasNetworkPhrases[parts[i]]; ok {
			return id
		}
	}

	return defaultGasNetwork
}

// parseGasArgs splits /gas arguments into a network id and an upper-case
// currency, e.g. ["bnb", "chain", "idr"] -> ("bsc", "IDR").
func parseGasArgs(args []string) (network, currency string) {
	tokens := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" {
			tokens = append(tokens, a)
		}
	}
	if len(tokens) == 0 {
		return defaultGasNetwork, defaultGasCurrency
	}

	currency = defaultGasCurrency
	if last := tokens[len(tokens)-1]; isCurrencyCandidate(last) {
		currency = strings.ToUpper(last)
		tokens = tokens[:len(tokens)-1]
	}

	return normalizeGasNetwork(tokens), currency
}
