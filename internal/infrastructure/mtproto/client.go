package mtproto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"telereply/internal/entities"
	"telereply/internal/interfaces"
)

const connectTimeout = 30 * time.Second

// Client binds one MTProto connection to the engine's ProtocolClient surface.
// The underlying library drives the connection from a Run loop, so Connect
// parks that loop in a goroutine and Disconnect cancels it.
type Client struct {
	tg      *telegram.Client
	sender  *message.Sender
	storage *stringSession
	peers   *peerCache

	// run drives the connection loop; it is the library's Run method, held as
	// a field so tests can substitute a scripted loop.
	run func(ctx context.Context, f func(context.Context) error) error

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}

	handlerMu sync.Mutex
	handler   func(entities.IncomingMessage)
}

// NewFactory returns the ClientFactory the session registry uses to mint
// connections.
func NewFactory() interfaces.ClientFactory {
	return func(apiID, apiHash, sessionMaterial string) (interfaces.ProtocolClient, error) {
		return NewClient(apiID, apiHash, sessionMaterial)
	}
}

func NewClient(apiID, apiHash, sessionMaterial string) (*Client, error) {
	var id int
	if _, err := fmt.Sscanf(apiID, "%d", &id); err != nil {
		return nil, fmt.Errorf("api id must be numeric: %q", apiID)
	}

	c := &Client{
		storage: newStringSession(sessionMaterial),
		peers:   newPeerCache(),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)

	c.tg = telegram.NewClient(id, apiHash, telegram.Options{
		SessionStorage: c.storage,
		UpdateHandler:  dispatcher,
	})
	c.run = c.tg.Run
	c.sender = message.NewSender(c.tg.API())
	return c, nil
}

// Connect starts the connection loop and waits for it to come up.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ready := make(chan struct{})
	errCh := make(chan error, 1)

	// The run goroutine owns the connected flag: set once the loop is up,
	// cleared when it returns. The loop is the connection; once it exits the
	// handle is dead and the registry must be able to build a replacement.
	go func() {
		defer close(done)
		err := c.run(runCtx, func(ctx context.Context) error {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		select {
		case errCh <- err:
		default:
		}
	}()

	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	waitCtx, waitCancel := context.WithTimeout(ctx, connectTimeout)
	defer waitCancel()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		cancel()
		return fmt.Errorf("connection failed: %w", err)
	case <-waitCtx.Done():
		cancel()
		return fmt.Errorf("connection timed out: %w", waitCtx.Err())
	}
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.connected = false
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.tg.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *Client) SendCodeRequest(ctx context.Context, phone string) (string, error) {
	sent, err := c.tg.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			return "", &entities.RateLimitError{Detail: fmt.Sprintf("too many code requests, retry in %s", wait)}
		}
		return "", err
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

func (c *Client) SignInCode(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.tg.Auth().SignIn(ctx, phone, code, codeHash)
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return entities.ErrSecondFactorRequired
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &entities.RateLimitError{Detail: fmt.Sprintf("too many attempts, retry in %s", wait)}
	}
	return err
}

func (c *Client) SignInPassword(ctx context.Context, password string) error {
	_, err := c.tg.Auth().Password(ctx, password)
	if err == nil {
		return nil
	}
	if errors.Is(err, auth.ErrPasswordInvalid) {
		return entities.ErrIncorrectPassword
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &entities.RateLimitError{Detail: fmt.Sprintf("too many attempts, retry in %s", wait)}
	}
	return err
}

func (c *Client) Me(ctx context.Context) (entities.Profile, error) {
	self, err := c.tg.Self(ctx)
	if err != nil {
		return entities.Profile{}, err
	}
	c.peers.putUser(self)
	return entities.Profile{
		ID:        self.ID,
		FirstName: self.FirstName,
		Username:  self.Username,
		Phone:     self.Phone,
	}, nil
}

func (c *Client) Dialogs(ctx context.Context, limit int) ([]entities.Dialog, error) {
	raw, err := c.tg.API().MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	var (
		dialogs  []tg.DialogClass
		messages []tg.MessageClass
		users    []tg.UserClass
		chats    []tg.ChatClass
	)
	switch d := raw.(type) {
	case *tg.MessagesDialogs:
		dialogs, messages, users, chats = d.Dialogs, d.Messages, d.Users, d.Chats
	case *tg.MessagesDialogsSlice:
		dialogs, messages, users, chats = d.Dialogs, d.Messages, d.Users, d.Chats
	default:
		return nil, fmt.Errorf("unexpected dialogs response %T", raw)
	}

	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			c.peers.putUser(user)
		}
	}
	for _, ch := range chats {
		c.peers.putChat(ch)
	}

	topMessages := make(map[int64]*tg.Message)
	for _, m := range messages {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		id := chatID(msg.PeerID)
		if _, seen := topMessages[id]; !seen {
			topMessages[id] = msg
		}
	}

	out := make([]entities.Dialog, 0, len(dialogs))
	for _, d := range dialogs {
		dlg, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		id := chatID(dlg.Peer)
		entry := entities.Dialog{ID: id}
		if info, ok := c.peers.get(id); ok {
			entry.Name = info.name
		}
		if msg := topMessages[id]; msg != nil {
			entry.Message = msg.Message
			entry.Date = time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, chat int64, limit int) ([]entities.ChatMessage, error) {
	peer, err := c.peers.inputPeer(chat)
	if err != nil {
		return nil, err
	}
	raw, err := c.tg.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	var (
		messages []tg.MessageClass
		users    []tg.UserClass
	)
	switch h := raw.(type) {
	case *tg.MessagesMessages:
		messages, users = h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		messages, users = h.Messages, h.Users
	case *tg.MessagesChannelMessages:
		messages, users = h.Messages, h.Users
	default:
		return nil, fmt.Errorf("unexpected history response %T", raw)
	}

	names := make(map[int64]string)
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			c.peers.putUser(user)
			names[user.ID] = displayName(user)
		}
	}

	out := make([]entities.ChatMessage, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		entry := entities.ChatMessage{
			ID:       msg.ID,
			Text:     msg.Message,
			Date:     time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339),
			Outgoing: msg.Out,
		}
		if from, ok := msg.FromID.(*tg.PeerUser); ok {
			entry.SenderID = from.UserID
			entry.SenderName = names[from.UserID]
		}
		if media := mediaInfo(msg.Media); media != nil {
			entry.Media = media
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, to entities.Peer, text string) error {
	if to.Username != "" {
		_, err := c.sender.Resolve(to.Username).Text(ctx, text)
		return err
	}
	peer, err := c.peers.inputPeer(to.ChatID)
	if err != nil {
		return err
	}
	_, err = c.sender.To(peer).Text(ctx, text)
	return err
}

func (c *Client) SessionMaterial() string {
	return c.storage.Material()
}

func (c *Client) Subscribe(handler func(entities.IncomingMessage)) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// onNewMessage feeds incoming private messages to the subscribed handler.
// Group and outgoing traffic is cached for peer resolution but not delivered.
func (c *Client) onNewMessage(_ context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
	for _, u := range e.Users {
		c.peers.putUser(u)
	}
	for _, ch := range e.Chats {
		c.peers.putChat(ch)
	}
	for _, ch := range e.Channels {
		c.peers.putChat(ch)
	}

	msg, ok := update.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		return nil
	}

	c.handlerMu.Lock()
	handler := c.handler
	c.handlerMu.Unlock()
	if handler == nil {
		return nil
	}

	var name string
	if info, ok := c.peers.get(peer.UserID); ok {
		name = info.name
	}
	handler(entities.IncomingMessage{
		ChatID:     peer.UserID,
		ChatName:   name,
		SenderName: name,
		Text:       msg.Message,
		Date:       time.Unix(int64(msg.Date), 0).UTC(),
	})
	return nil
}

func mediaInfo(media tg.MessageMediaClass) *entities.MediaInfo {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		return &entities.MediaInfo{Type: "photo"}
	case *tg.MessageMediaDocument:
		info := &entities.MediaInfo{Type: "document"}
		if doc, ok := m.Document.(*tg.Document); ok {
			info.MimeType = doc.MimeType
			for _, attr := range doc.Attributes {
				if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
					info.Filename = fn.FileName
				}
			}
		}
		return info
	case nil:
		return nil
	}
	return nil
}
