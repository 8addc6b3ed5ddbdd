package mtproto

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/harun/voxrelay/pkg/protocol"
)

// GetMessage resolves a message by chat and message ID
func (c *Client) GetMessage(ctx context.Context, chatID int64, messageID int) (protocol.Message, error) {
	raw, err := c.fetchMessage(ctx, chatID, messageID)
	if err != nil {
		return protocol.Message{}, err
	}

	converted := convertMessage(raw)
	converted.ChatID = chatID
	return converted, nil
}

// DownloadVoice fetches the raw audio payload of a voice message
func (c *Client) DownloadVoice(ctx context.Context, chatID int64, messageID int) ([]byte, error) {
	raw, err := c.fetchMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}

	doc, ok := voiceDocument(raw)
	if !ok {
		return nil, protocol.ErrNotVoice
	}

	var buf bytes.Buffer
	d := downloader.NewDownloader()
	if _, err := d.Download(c.client.API(), doc.AsInputDocumentFileLocation()).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to download voice payload: %w", err)
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Int("bytes", buf.Len()).
		Msg("Voice payload downloaded")

	return buf.Bytes(), nil
}

// SendReply posts text into a chat, as a reply when replyToID is non-zero
func (c *Client) SendReply(ctx context.Context, chatID int64, replyToID int, text string) error {
	peer := c.peers.peer(chatID)

	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: randomID(),
	}
	if replyToID != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: replyToID})
	}

	if _, err := c.client.API().MessagesSendMessage(ctx, req); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("reply_to", replyToID).
		Msg("Reply sent")

	return nil
}

// fetchMessage retrieves the raw message, routing through the channel API
// when the chat is a known channel
func (c *Client) fetchMessage(ctx context.Context, chatID int64, messageID int) (*tg.Message, error) {
	api := c.client.API()

	var (
		result tg.MessagesMessagesClass
		err    error
	)

	if channel, ok := c.peers.channel(chatID); ok {
		result, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: channel,
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
		})
	} else {
		result, err = api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}

	var messages []tg.MessageClass
	switch v := result.(type) {
	case *tg.MessagesMessages:
		c.peers.harvest(v.Users, v.Chats)
		messages = v.Messages
	case *tg.MessagesMessagesSlice:
		c.peers.harvest(v.Users, v.Chats)
		messages = v.Messages
	case *tg.MessagesChannelMessages:
		c.peers.harvest(v.Users, v.Chats)
		messages = v.Messages
	default:
		return nil, fmt.Errorf("unexpected messages response %T", result)
	}

	for _, raw := range messages {
		msg, ok := raw.(*tg.Message)
		if ok && msg.ID == messageID {
			return msg, nil
		}
	}

	return nil, protocol.ErrMessageNotFound
}

// voiceDocument extracts the voice-note document from a message, if any
func voiceDocument(msg *tg.Message) (*tg.Document, bool) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, false
	}

	docMedia, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, false
	}

	docClass, ok := docMedia.GetDocument()
	if !ok {
		return nil, false
	}

	doc, ok := docClass.(*tg.Document)
	if !ok {
		return nil, false
	}

	for _, attr := range doc.Attributes {
		if audio, ok := attr.(*tg.DocumentAttributeAudio); ok && audio.Voice {
			return doc, true
		}
	}

	return nil, false
}

// randomID produces the client-side random ID message sends require
func randomID() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
