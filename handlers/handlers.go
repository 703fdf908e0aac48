package handlers

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"discord-pk-bot/bot"
	"discord-pk-bot/handlers/proxy"
)

// Register adds the message event handlers for h to the bot's session.
func Register(b *bot.Bot, h proxy.MessageHandler) {
	b.Session.AddHandler(MessageCreateHandler(h))
	b.Session.AddHandler(MessageUpdateHandler(h))
	b.Session.AddHandler(MessageDeleteHandler(h))

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("logged in", "user", r.User.Username, "user_id", r.User.ID, "guilds", len(r.Guilds))
	})
}
