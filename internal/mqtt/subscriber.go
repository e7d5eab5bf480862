package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/botweaver/engine/internal/bots"
	"github.com/botweaver/engine/internal/conversation"
	"github.com/botweaver/engine/internal/events"
	"github.com/botweaver/engine/internal/storage/postgres"
	"github.com/botweaver/engine/internal/workflow"
)

// RequestTopic is the wildcard subscription for inbound chat requests.
// Bot-specific topics are bots/<botID>/messages/request.
const RequestTopic = "bots/+/messages/request"

// ChatRequest is the inbound payload on a request topic.
type ChatRequest struct {
	ConversationID string                 `json:"conversation_id"`
	Message        string                 `json:"message"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// ChatResponse is the payload published on the response topic.
type ChatResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Response       string                 `json:"response"`
	Context        map[string]interface{} `json:"context"`
	Timestamp      time.Time              `json:"timestamp"`
}

// ChatSubscriber routes inbound chat requests to bot engines.
// Each delivery runs one independent execution; the only shared state is
// the read-side bot registry and the stores, both safe for concurrent use.
type ChatSubscriber struct {
	client       *Client
	registry     *bots.Registry
	store        conversation.Store
	messages     *postgres.Client
	historyTurns int
	execTimeout  time.Duration
}

// NewChatSubscriber creates a chat subscriber. store and messages may be
// nil; history and persistence degrade gracefully without them.
func NewChatSubscriber(client *Client, registry *bots.Registry, store conversation.Store, messages *postgres.Client, historyTurns int) *ChatSubscriber {
	return &ChatSubscriber{
		client:       client,
		registry:     registry,
		store:        store,
		messages:     messages,
		historyTurns: historyTurns,
		execTimeout:  60 * time.Second,
	}
}

// Start connects and subscribes to the request topic.
func (s *ChatSubscriber) Start() bool {
	return s.client.StartWithRetry(RequestTopic, s.handle)
}

// Stop disconnects from the broker.
func (s *ChatSubscriber) Stop() {
	s.client.Disconnect()
}

func (s *ChatSubscriber) handle(_ paho.Client, msg paho.Message) {
	botID := botIDFromTopic(msg.Topic())
	if botID == "" {
		log.Warn().Str("topic", msg.Topic()).Msg("mqtt: request on unrecognized topic")
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		events.Emit("warn", "transport.error", "malformed chat request", map[string]interface{}{
			"bot_id": botID,
			"error":  err.Error(),
		})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = "default"
	}

	events.Emit("debug", "transport.request", "", map[string]interface{}{
		"bot_id":          botID,
		"conversation_id": req.ConversationID,
	})

	// The generation call is the only slow step; bound the whole execution
	// through its context.
	ctx, cancel := context.WithTimeout(context.Background(), s.execTimeout)
	defer cancel()

	result := s.execute(ctx, botID, req)

	payload, err := json.Marshal(ChatResponse{
		ConversationID: req.ConversationID,
		Response:       result.Response,
		Context:        result.Context.Snapshot(),
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Msg("mqtt: failed to marshal chat response")
		return
	}

	topic := "bots/" + botID + "/messages/response"
	if err := s.client.Publish(topic, payload); err != nil {
		events.Emit("error", "transport.error", "failed to publish response", map[string]interface{}{
			"bot_id": botID,
			"error":  err.Error(),
		})
		return
	}

	events.Emit("debug", "transport.response", "", map[string]interface{}{
		"bot_id":          botID,
		"conversation_id": req.ConversationID,
	})
}

// execute runs one workflow execution for a bot, including history lookup
// and message persistence around the engine call.
func (s *ChatSubscriber) execute(ctx context.Context, botID string, req ChatRequest) workflow.Result {
	bot := s.registry.Get(botID)
	if bot == nil {
		events.Emit("warn", "bot.error", "unknown bot", map[string]interface{}{"bot_id": botID})
		execCtx := workflow.NewContext()
		execCtx.Set(workflow.MessageKey, req.Message)
		return workflow.Result{Response: workflow.ResponseNoWorkflow, Context: execCtx}
	}

	var history []workflow.HistoryMessage
	if s.store != nil {
		h, err := s.store.Load(ctx, botID, req.ConversationID)
		if err != nil {
			events.Emit("warn", "conversation.error", "failed to load history", map[string]interface{}{
				"bot_id": botID,
				"error":  err.Error(),
			})
		} else {
			history = h.Messages
			if s.historyTurns > 0 && len(history) > s.historyTurns {
				history = history[len(history)-s.historyTurns:]
			}
		}
	}

	execCtx := workflow.NewContext()
	for k, v := range req.Context {
		execCtx.Set(k, v)
	}

	result := bot.Engine.Execute(ctx, workflow.Request{
		Message: req.Message,
		History: history,
		Context: execCtx,
	})

	s.record(ctx, botID, req.ConversationID, req.Message, result.Response)

	return result
}

// record persists both sides of the exchange to the conversation store and
// the message log. Failures are logged, never surfaced to the user.
func (s *ChatSubscriber) record(ctx context.Context, botID, conversationID, userMsg, botMsg string) {
	if s.store != nil {
		if err := s.store.Append(ctx, botID, conversationID, workflow.HistoryMessage{Sender: conversation.SenderUser, Content: userMsg}); err != nil {
			log.Warn().Err(err).Str("bot_id", botID).Msg("conversation: failed to append user message")
		}
		if err := s.store.Append(ctx, botID, conversationID, workflow.HistoryMessage{Sender: conversation.SenderBot, Content: botMsg}); err != nil {
			log.Warn().Err(err).Str("bot_id", botID).Msg("conversation: failed to append bot message")
		} else {
			events.Emit("debug", "conversation.saved", "", map[string]interface{}{
				"bot_id":          botID,
				"conversation_id": conversationID,
			})
		}
	}

	if s.messages != nil {
		if _, err := s.messages.SaveMessage(botID, conversationID, conversation.SenderUser, userMsg); err != nil {
			log.Warn().Err(err).Str("bot_id", botID).Msg("postgres: failed to save user message")
		}
		if _, err := s.messages.SaveMessage(botID, conversationID, conversation.SenderBot, botMsg); err != nil {
			log.Warn().Err(err).Str("bot_id", botID).Msg("postgres: failed to save bot message")
		}
	}
}

// botIDFromTopic extracts the bot ID from bots/<botID>/messages/request.
func botIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "bots" || parts[2] != "messages" || parts[3] != "request" {
		return ""
	}
	return parts[1]
}
