package sources

import (
	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/livecue/chatfeed/comment"
)

// normalizeTwitchMessage maps an IRC PRIVMSG onto the shared comment model.
// The raw IRC line rides along untouched for audit exports.
func normalizeTwitchMessage(msg twitch.PrivateMessage) comment.Comment {
	author := msg.User.DisplayName
	if author == "" {
		author = msg.User.Name
	}
	return comment.Comment{
		ID:        msg.ID,
		Platform:  "twitch",
		Author:    author,
		AuthorID:  msg.User.ID,
		Message:   msg.Message,
		Timestamp: msg.Time.UTC(),
		Raw:       msg.Raw,
	}
}
