package models

import (
	"strconv"
	"time"
)

// PostAuthor is the account that published a Post.
type PostAuthor struct {
	UserName       string `json:"userName"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	IsBlueVerified bool   `json:"isBlueVerified"`
}

// Post is a single item from a social timeline (X).
type Post struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Text          string     `json:"text"`
	Source        string     `json:"source,omitempty"`
	Author        PostAuthor `json:"author"`
	LikeCount     int        `json:"likeCount"`
	RetweetCount  int        `json:"retweetCount"`
	ReplyCount    int        `json:"replyCount"`
	QuoteCount    int        `json:"quoteCount"`
	ViewCount     int        `json:"viewCount"`
	BookmarkCount int        `json:"bookmarkCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	Lang          string     `json:"lang,omitempty"`
	IsReply       bool       `json:"isReply"`
}

func (p Post) Timestamp() time.Time { return p.CreatedAt }

// SenderKeys returns the identities a tracked-sender entry may match.
// Posts are matched by handle only.
func (p Post) SenderKeys() []string {
	return []string{p.Author.UserName}
}

// SenderKind distinguishes a person from a channel posting as itself.
type SenderKind string

const (
	SenderUser    SenderKind = "user"
	SenderChannel SenderKind = "channel"
)

// Sender is the author of a group Message.
type Sender struct {
	ID       int64      `json:"id"`
	Type     SenderKind `json:"type"`
	Name     string     `json:"name"`
	Username *string    `json:"username"`
}

// Message is a single item from a group channel (Telegram).
type Message struct {
	MessageID int64     `json:"message_id"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
	Views     *int      `json:"views"`
	Sender    Sender    `json:"sender"`
}

func (m Message) Timestamp() time.Time { return m.Date }

// SenderKeys returns display name, username and decimal id.
func (m Message) SenderKeys() []string {
	keys := []string{m.Sender.Name, strconv.FormatInt(m.Sender.ID, 10)}
	if m.Sender.Username != nil {
		keys = append(keys, *m.Sender.Username)
	}
	return keys
}

// ViewCount treats a missing view count as zero.
func (m Message) ViewCount() int {
	if m.Views == nil {
		return 0
	}
	return *m.Views
}
