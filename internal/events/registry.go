package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// execution
	"execution.started":   {},
	"execution.completed": {},
	"node.visited":        {},

	// generation
	"generation.failed": {},

	// conversation
	"conversation.saved": {},
	"conversation.error": {},

	// bot
	"bot.loaded": {},
	"bot.error":  {},

	// transport
	"transport.connected":    {},
	"transport.disconnected": {},
	"transport.request":      {},
	"transport.response":     {},
	"transport.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
