package dispatch

import "testing"

func TestParseGasArgs(t *testing.T) {
	tests := []struct {
		args         []string
		wantNetwork  string
		wantCurrency string
	}{
		{nil, "ethereum", "USD"},
		{[]string{"", ""}, "ethereum", "USD"},
		{[]string{"idr"}, "ethereum", "IDR"},
		{[]string{"base"}, "base", "USD"},
		{[]string{"Base", "Mainnet"}, "base", "USD"},
		{[]string{"polygon", "eur"}, "plasma", "EUR"},
		{[]string{"binance", "smart", "chain"}, "bsc", "USD"},
		{[]string{"bnb", "chain", "idr"}, "bsc", "IDR"},
		{[]string{"matic", "usdt1"}, "plasma", "USD"},
		{[]string{"the", "linea", "network"}, "linea", "USD"},
		{[]string{"arbitrum"}, "ethereum", "USD"},
		{[]string{"eth", "dollars"}, "ethereum", "USD"},
	}
	for _, tt := range tests {
		network, currency := parseGasArgs(tt.args)
		if network != tt.wantNetwork || currency != tt.wantCurrency {
			t.Errorf("parseGasArgs(%q) = (%q, %q), want (%q, %q)",
				tt.args, network, currency, tt.wantNetwork, tt.wantCurrency)
		}
	}
}

func TestIsCurrencyCandidate(t *testing.T) {
	for token, want := range map[string]bool{
		"usd":     true,
		"IDR":     true,
		"eth":     false, // network keyword
		"chain":   false,
		"network": false,
		"u":       false,
		"toolong": false,
		"us1":     false,
		"":        false,
	} {
		if got := isCurrencyCandidate(token); got != want {
			t.Errorf("isCurrencyCandidate(%q) = %v, want %v", token, got, want)
		}
	}
}

func TestNormalizeGasNetwork_LongestPrefix(t *testing.T) {
	if got := normalizeGasNetwork([]string{"polygon", "pos", "extra"}); got != "plasma" {
		t.Errorf("prefix match = %q", got)
	}
	if got := normalizeGasNetwork([]string{"cheap", "bsc"}); got != "bsc" {
		t.Errorf("last-word match = %q", got)
	}
}
