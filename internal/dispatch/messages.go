package dispatch

import "strings"

// Message keys.
const (
	msgStartGreeting    = "start_greeting"
	msgInviteButton     = "invite_button"
	msgHelpText         = "help_text"
	msgResetDone        = "reset_done"
	msgNonTextWarning   = "non_text_warning"
	msgAgentError       = "agent_error"
	msgAgentFallback    = "agent_fallback"
	msgLangUsage        = "lang_usage"
	msgLangInvalid      = "lang_invalid"
	msgLangNoPermission = "lang_no_permission"
	msgLangSet          = "lang_set" // %s is the language display name
	msgProjectUsage     = "project_usage"
	msgGasError         = "gas_error"
)

const fallbackLanguage = "EN"

// languageNames are shown in the lang_set confirmation.
var languageNames = map[string]string{
	"EN": "English",
	"ID": "Bahasa Indonesia",
}

var bundles = map[string]map[string]string{
	"EN": {
		msgStartGreeting: "Hello! I'm the Skel Helper Bot linked to the Skel Crypto Agent.\n\n" +
			"What I can do for you:\n" +
			"- Chat about crypto and offer lightweight analysis.\n" +
			"- Provide instant price conversions, e.g. `1 BTC`, `1 BTC IDR`, `1 BTC to USD`.\n" +
			"- Deliver deep project snapshots via /project <name>.\n" +
			"- Surface gas tiers via /gas and Chainlist endpoints via /rpc.\n\n" +
			"Need a refresher? Use /help.",
		msgInviteButton: "Invite to Discussion Group",
		msgHelpText: "Available commands:\n" +
			"- /start — Reset the conversation and show the introduction.\n" +
			"- /reset — Clear the conversation history kept by the agent.\n" +
			"- /help — Display this help message.\n" +
			"- /lang EN or /lang ID — Switch the bot language.\n" +
			"- /project <name> — Request an in-depth project analysis.\n\n" +
			"- /gas [network] [currency] — Check live gas fees (defaults to Ethereum/USD).\n" +
			"- /rpc [network] — Fetch Chainlist RPC endpoints (default network: ETH).\n\n" +
			"Capabilities:\n" +
			"- General crypto chat and analysis with up-to-date context.\n" +
			"- Instant price conversions, e.g. `1 BTC`, `1 BTC IDR`, `1 BTC to USD`.\n" +
			"- Detailed project analysis via /project <name>.\n\n" +
			"Send any text message to forward it to the Skel Crypto Agent.",
		msgResetDone:        "Conversation history cleared.",
		msgNonTextWarning:   "Sorry, I can only process text messages.",
		msgAgentError:       "The agent ran into a problem. Please try again shortly.",
		msgAgentFallback:    "Sorry, I couldn't read the agent's answer. Please try again.",
		msgLangUsage:        "Usage: /lang EN or /lang ID.",
		msgLangInvalid:      "Unsupported language. Choose EN or ID.",
		msgLangNoPermission: "You are not allowed to change the language here.",
		msgLangSet:          "Language set to %s.",
		msgProjectUsage:     "Usage: /project <project name or symbol>.",
		msgGasError:         "Sorry, I couldn't fetch gas fees right now.",
	},
	"ID": {
		msgStartGreeting: "Halo! Aku Skel Helper Bot yang terhubung ke Skel Crypto Agent.\n\n" +
			"Kemampuanku:\n" +
			"- Mengobrol seputar crypto dengan analisis yang relevan.\n" +
			"- Memberikan konversi harga instan, mis. `1 BTC`, `1 BTC IDR`, `1 BTC to USD`.\n" +
			"- Menyajikan ringkasan proyek mendalam lewat /project <nama>.\n" +
			"- Memberikan biaya gas via /gas serta daftar RPC melalui /rpc.\n\n" +
			"Butuh pengingat? Gunakan /help.",
		msgInviteButton: "Undang ke Grup Diskusi",
		msgHelpText: "Perintah yang tersedia:\n" +
			"- /start — Mulai ulang percakapan dan tampilkan pengantar.\n" +
			"- /reset — Hapus riwayat percakapan yang disimpan agent.\n" +
			"- /help — Tampilkan pesan bantuan ini.\n" +
			"- /lang EN atau /lang ID — Ubah bahasa bot.\n" +
			"- /project <nama> — Minta analisis proyek crypto secara mendalam.\n\n" +
			"- /gas [jaringan] [mata uang] — Lihat biaya gas terkini (default Ethereum/USD).\n" +
			"- /rpc [jaringan] — Ambil daftar RPC dari Chainlist (default ETH).\n\n" +
			"Kemampuan:\n" +
			"- Chat dan analisis crypto dengan konteks terbaru.\n" +
			"- Konversi harga instan, mis. `1 BTC`, `1 BTC IDR`, `1 BTC to USD`.\n" +
			"- Analisis proyek terperinci melalui /project <nama>.\n\n" +
			"Kirim pesan teks apa pun untuk meneruskannya ke Skel Crypto Agent.",
		msgResetDone:        "Riwayat percakapan dihapus.",
		msgNonTextWarning:   "Maaf, aku hanya bisa memproses pesan teks.",
		msgAgentError:       "Agent sedang bermasalah. Coba lagi sebentar lagi.",
		msgAgentFallback:    "Maaf, aku tidak bisa membaca jawaban agent. Coba lagi.",
		msgLangUsage:        "Gunakan: /lang EN atau /lang ID.",
		msgLangInvalid:      "Bahasa tidak didukung. Pilih EN atau ID.",
		msgLangNoPermission: "Kamu tidak memiliki izin untuk mengubah bahasa di sini.",
		msgLangSet:          "Bahasa diatur ke %s.",
		msgProjectUsage:     "Gunakan: /project <nama atau simbol proyek>.",
		msgGasError:         "Maaf, aku belum bisa mengambil data gas saat ini.",
	},
}

// Text returns the message for key in lang, falling back to English for an
// unknown language or a key missing from the bundle.
func Text(lang, key string) string {
	if b, ok := bundles[strings.ToUpper(lang)]; ok {
		if s, ok := b[key]; ok {
			return s
		}
	}
	return bundles[fallbackLanguage][key]
}

// LanguageName returns the display name for a language code.
func LanguageName(lang string) string {
	if name, ok := languageNames[strings.ToUpper(lang)]; ok {
		return name
	}
	return lang
}
