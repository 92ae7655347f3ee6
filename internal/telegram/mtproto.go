package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/crypto"
	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// MTProtoConfig configures the user-account client.
type MTProtoConfig struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	Phone       string `yaml:"phone"`
	SessionFile string `yaml:"session_file"`

	// SessionSecret enables encryption of the session file at rest.
	SessionSecret string `yaml:"session_secret"`
}

// MTProtoClient reads channel history through a logged-in Telegram account.
type MTProtoClient struct {
	client   *telegram.Client
	phone    string
	authCode chan string
	ready    chan struct{}
	logger   *zap.Logger
}

var (
	ErrNotReady        = errors.New("telegram client is not authorized yet")
	ErrNotWaitingCode  = errors.New("telegram client is not waiting for a login code")
	ErrChannelNotFound = errors.New("channel not found among the account's dialogs")
)

func NewMTProtoClient(cfg MTProtoConfig, logger *zap.Logger) (*MTProtoClient, error) {
	if cfg.SessionFile == "" {
		cfg.SessionFile = "session.json"
	}

	var storage session.Storage = &session.FileStorage{Path: cfg.SessionFile}
	if cfg.SessionSecret != "" {
		sealed, err := crypto.NewSealedFileStorage(cfg.SessionFile, cfg.SessionSecret)
		if err != nil {
			return nil, fmt.Errorf("session storage: %w", err)
		}
		storage = sealed
	}

	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		Logger:         logger.Named("gotd"),
		SessionStorage: storage,
	})

	return &MTProtoClient{
		client:   client,
		phone:    cfg.Phone,
		authCode: make(chan string, 1),
		ready:    make(chan struct{}),
		logger:   logger,
	}, nil
}

// Run connects, logs in when the session is not authorized, and blocks
// until ctx is cancelled.
func (c *MTProtoClient) Run(ctx context.Context) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			auth.Constant(c.phone, "", auth.CodeAuthenticatorFunc(func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
				c.logger.Info("Waiting for Telegram login code via API")
				select {
				case code := <-c.authCode:
					return strings.TrimSpace(code), nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			})),
			auth.SendCodeOptions{},
		)
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}

		c.logger.Info("Telegram client started and authenticated")
		close(c.ready)

		<-ctx.Done()
		return ctx.Err()
	})
}

// SubmitCode hands a login code to a pending authentication.
func (c *MTProtoClient) SubmitCode(code string) error {
	select {
	case c.authCode <- code:
		return nil
	default:
		return ErrNotWaitingCode
	}
}

// Ready reports whether the client finished logging in.
func (c *MTProtoClient) Ready() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// FetchMessages returns the latest history of a channel the account has
// joined. channel is a username or numeric id.
func (c *MTProtoClient) FetchMessages(ctx context.Context, channel string) ([]models.Message, error) {
	if !c.Ready() {
		return nil, ErrNotReady
	}
	api := c.client.API()

	ch, err := c.findChannel(ctx, api, channel)
	if err != nil {
		return nil, err
	}

	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
		Limit: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	var raw []tg.MessageClass
	var users []tg.UserClass
	switch h := history.(type) {
	case *tg.MessagesChannelMessages:
		raw, users = h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		raw, users = h.Messages, h.Users
	case *tg.MessagesMessages:
		raw, users = h.Messages, h.Users
	default:
		c.logger.Warn("Unexpected history type", zap.String("type", fmt.Sprintf("%T", history)))
		return []models.Message{}, nil
	}

	return convertHistory(ch, raw, users), nil
}

func (c *MTProtoClient) findChannel(ctx context.Context, api *tg.Client, channel string) (*tg.Channel, error) {
	dialogs, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dialogs: %w", err)
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	default:
		c.logger.Warn("Unknown MessagesDialogsClass type", zap.String("type", fmt.Sprintf("%T", dialogs)))
	}

	wantID, byID := channelID(channel)
	wantName := strings.TrimPrefix(channel, "@")
	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		if byID && ch.ID == wantID {
			return ch, nil
		}
		if !byID && strings.EqualFold(ch.Username, wantName) {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", channel, ErrChannelNotFound)
}

// channelID accepts both bare ids and the -100 prefixed bot API form.
func channelID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if id < 0 {
		id = -id
		if t := strconv.FormatInt(id, 10); strings.HasPrefix(t, "100") && len(t) > 3 {
			id, _ = strconv.ParseInt(t[3:], 10, 64)
		}
	}
	return id, true
}

func convertHistory(ch *tg.Channel, raw []tg.MessageClass, users []tg.UserClass) []models.Message {
	byID := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			byID[user.ID] = user
		}
	}

	out := make([]models.Message, 0, len(raw))
	for _, mc := range raw {
		m, ok := mc.(*tg.Message)
		if !ok || m.Message == "" {
			continue
		}

		msg := models.Message{
			MessageID: int64(m.ID),
			Text:      m.Message,
			Date:      time.Unix(int64(m.Date), 0).UTC(),
			Sender:    channelSender(ch),
		}
		if views, ok := m.GetViews(); ok {
			msg.Views = &views
		}
		if from, ok := m.GetFromID(); ok {
			if peer, ok := from.(*tg.PeerUser); ok {
				msg.Sender = userSender(peer.UserID, byID[peer.UserID])
			}
		}
		out = append(out, msg)
	}
	return out
}

func channelSender(ch *tg.Channel) models.Sender {
	s := models.Sender{ID: ch.ID, Type: models.SenderChannel, Name: ch.Title}
	if ch.Username != "" {
		username := ch.Username
		s.Username = &username
	}
	return s
}

func userSender(id int64, u *tg.User) models.Sender {
	s := models.Sender{ID: id, Type: models.SenderUser, Name: strconv.FormatInt(id, 10)}
	if u == nil {
		return s
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		s.Name = name
	}
	if u.Username != "" {
		username := u.Username
		s.Username = &username
	}
	return s
}
