package websocket

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"arbd/internal/notify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Действия клиента
const (
	// ActionSubscribe - добавить типы событий в подписку
	ActionSubscribe = "subscribe"

	// ActionUnsubscribe - убрать типы; без списка - сбросить подписку (все события)
	ActionUnsubscribe = "unsubscribe"
)

// Типы ответов сервера на сообщения клиента
const (
	ReplyAck   = "ack"
	ReplyError = "error"
)

// knownTypes - типы событий потока
var knownTypes = map[string]struct{}{
	string(notify.EventOpportunity): {},
	string(notify.EventTrade):       {},
	string(notify.EventRisk):        {},
}

// ClientMessage - сообщение клиента
//
// Пример: {"action":"subscribe","types":["trade","risk"]}
type ClientMessage struct {
	Action string   `json:"action"`
	Types  []string `json:"types,omitempty"`
}

// ReplyMessage - ответ на сообщение клиента
type ReplyMessage struct {
	Type   string   `json:"type"`
	Action string   `json:"action,omitempty"`
	Types  []string `json:"types,omitempty"`
	Error  string   `json:"error,omitempty"`
}

var errUnknownAction = errors.New("unknown action")

func parseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Action != ActionSubscribe && msg.Action != ActionUnsubscribe {
		return msg, fmt.Errorf("%w %q", errUnknownAction, msg.Action)
	}
	for _, t := range msg.Types {
		if _, ok := knownTypes[t]; !ok {
			return msg, fmt.Errorf("unknown event type %q", t)
		}
	}
	return msg, nil
}

func encodeReply(r ReplyMessage) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}

// messageType читает поле type закодированного события без полного разбора
func messageType(data []byte) string {
	return jsoniter.Get(data, "type").ToString()
}
