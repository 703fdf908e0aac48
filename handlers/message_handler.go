package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"discord-pk-bot/handlers/proxy"
)

// MessageCreateHandler forwards every created message to the reconciler.
func MessageCreateHandler(h proxy.MessageHandler) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil {
			return
		}
		h.HandleCreate(context.Background(), m)
	}
}

// MessageUpdateHandler forwards edits. Updates without an id carry nothing to reconcile.
func MessageUpdateHandler(h proxy.MessageHandler) func(s *discordgo.Session, m *discordgo.MessageUpdate) {
	return func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Message == nil || m.ID == "" {
			return
		}
		h.HandleUpdate(context.Background(), m)
	}
}

// MessageDeleteHandler forwards deletions, including ones the state cache never saw.
func MessageDeleteHandler(h proxy.MessageHandler) func(s *discordgo.Session, m *discordgo.MessageDelete) {
	return func(s *discordgo.Session, m *discordgo.MessageDelete) {
		if m.Message == nil {
			return
		}
		h.HandleDelete(context.Background(), m)
	}
}
