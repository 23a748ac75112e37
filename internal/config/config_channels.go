package config

// ChannelsConfig contains per-channel configuration.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Token       string              `json:"token"`
	Proxy       string              `json:"proxy,omitempty"`
	AllowFrom   FlexibleStringSlice `json:"allow_from"`
	SendRate    float64             `json:"send_rate,omitempty"`    // outbound messages per second (default 25)
	BotUsername string              `json:"bot_username,omitempty"` // fallback for invite links when getMe has no username
}
