package dispatch

import (
	"encoding/json"
	"fmt"
)

// Prompts carry the reply language and, for commands, a tag the agent
// routes on: "[LANG=EN] text", "[LANG=EN][PROJECT] q",
// "[LANG=EN][GAS]{...}", "[LANG=EN][RPC]{...}".

func chatPrompt(lang, text string) string {
	return fmt.Sprintf("[LANG=%s] %s", lang, text)
}

func projectPrompt(lang, query string) string {
	return fmt.Sprintf("[LANG=%s][PROJECT] %s", lang, query)
}

type gasPayload struct {
	Network  string `json:"network"`
	Currency string `json:"currency"`
}

func gasPrompt(lang, network, currency string) (string, error) {
	payload, err := json.Marshal(gasPayload{Network: network, Currency: currency})
	if err != nil {
		return "", fmt.Errorf("marshal gas payload: %w", err)
	}
	return fmt.Sprintf("[LANG=%s][GAS]%s", lang, payload), nil
}

type rpcPayload struct {
	Network *string `json:"network"`
}

// rpcPrompt sends a null network when query is empty so the agent picks its default.
func rpcPrompt(lang, query string) (string, error) {
	var p rpcPayload
	if query != "" {
		p.Network = &query
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal rpc payload: %w", err)
	}
	return fmt.Sprintf("[LANG=%s][RPC]%s", lang, payload), nil
}
