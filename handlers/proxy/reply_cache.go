package proxy

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ReplyCache remembers the message a pending message replied to, keyed by the
// replying message's id, so a proxied rewrite can still show its reply context.
// Entries are only ever evicted by capacity.
type ReplyCache struct {
	cache *lru.Cache[string, *discordgo.Message]
}

func NewReplyCache(size int) (*ReplyCache, error) {
	cache, err := lru.New[string, *discordgo.Message](size)
	if err != nil {
		return nil, fmt.Errorf("create reply cache: %w", err)
	}
	return &ReplyCache{cache: cache}, nil
}

// Put stores the referenced message for replyingID.
func (c *ReplyCache) Put(replyingID string, referenced *discordgo.Message) {
	c.cache.Add(replyingID, referenced)
}

// Get returns the referenced message and marks the entry as recently used.
func (c *ReplyCache) Get(replyingID string) (*discordgo.Message, bool) {
	return c.cache.Get(replyingID)
}

func (c *ReplyCache) Len() int {
	return c.cache.Len()
}
