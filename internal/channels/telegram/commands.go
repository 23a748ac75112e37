package telegram

import (
	"context"
	"log/slog"

	"github.com/mymmrac/telego"
)

// SyncMenuCommands registers bot commands with Telegram via setMyCommands.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	if err := c.bot.DeleteMyCommands(ctx, nil); err != nil {
		slog.Debug("deleteMyCommands failed (may not exist)", "error", err)
	}

	if len(commands) == 0 {
		return nil
	}

	if len(commands) > 100 {
		commands = commands[:100]
	}

	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commands,
	})
}

// DefaultMenuCommands returns the bot menu commands.
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "start", Description: "Reset the conversation and show the introduction"},
		{Command: "help", Description: "Show available commands"},
		{Command: "reset", Description: "Clear the conversation history"},
		{Command: "lang", Description: "Switch language: /lang EN or /lang ID"},
		{Command: "project", Description: "In-depth project analysis: /project <name>"},
		{Command: "gas", Description: "Live gas fees: /gas [network] [currency]"},
		{Command: "rpc", Description: "Chainlist RPC endpoints: /rpc [network]"},
	}
}
