package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const discordMaxText = 2000

type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	Session   discordSender
	ChannelID string
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &DiscordNotifier{Session: s, ChannelID: channelID}, nil
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Notify(ctx context.Context, text string) error {
	_, err := d.Session.ChannelMessageSend(d.ChannelID, clip(text, discordMaxText), discordgo.WithContext(ctx))
	return err
}
