package proxy

import "github.com/bwmarrin/discordgo"

// sessionPlatform serves lookups from the state cache first and falls back to REST.
type sessionPlatform struct {
	s *discordgo.Session
}

// NewSessionPlatform adapts a discordgo session to Platform.
func NewSessionPlatform(s *discordgo.Session) Platform {
	return sessionPlatform{s: s}
}

func (p sessionPlatform) Channel(channelID string) (*discordgo.Channel, error) {
	if p.s.State != nil {
		if ch, err := p.s.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	return p.s.Channel(channelID)
}

func (p sessionPlatform) ChannelWebhooks(channelID string) ([]*discordgo.Webhook, error) {
	return p.s.ChannelWebhooks(channelID)
}

func (p sessionPlatform) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	if p.s.State != nil {
		if msg, err := p.s.State.Message(channelID, messageID); err == nil {
			return msg, nil
		}
	}
	return p.s.ChannelMessage(channelID, messageID)
}

func (p sessionPlatform) GuildMember(guildID, userID string) (*discordgo.Member, error) {
	if p.s.State != nil {
		if member, err := p.s.State.Member(guildID, userID); err == nil {
			return member, nil
		}
	}
	return p.s.GuildMember(guildID, userID)
}
