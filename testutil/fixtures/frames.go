// =============================================================================
// 📦 测试数据工厂 - ChatHub 帧
// =============================================================================
// 提供预定义的入站帧负载，每个负载都以 0x1E 结尾，可直接写入 websocket。
// =============================================================================
package fixtures

import (
	"encoding/json"
	"strings"
)

// RS is the record separator that terminates every frame.
const RS = "\x1e"

// Join concatenates frames into one payload.
func Join(frames ...string) string {
	return strings.Join(frames, "")
}

func frame(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data) + RS
}

// Message builds one chat message object.
func Message(origin, text, cardText string) map[string]any {
	return map[string]any{
		"author":        "bot",
		"contentOrigin": origin,
		"text":          text,
		"adaptiveCards": []any{
			map[string]any{
				"type": "AdaptiveCard",
				"body": []any{map[string]any{"type": "TextBlock", "text": cardText}},
			},
		},
	}
}

// PartialMessages wraps messages in a type 1 frame.
func PartialMessages(messages ...map[string]any) string {
	msgs := make([]any, len(messages))
	for i, m := range messages {
		msgs[i] = m
	}
	return frame(map[string]any{
		"type":      1,
		"target":    "update",
		"arguments": []any{map[string]any{"messages": msgs, "requestId": "req-1"}},
	})
}

// Partial is a type 1 frame whose card text is linked and message text is
// plain.
func Partial(text string) string {
	return PartialMessages(Message("DeepLeo", text, text))
}

// PartialLinked carries different linked and stripped renderings.
func PartialLinked(linked, stripped string) string {
	return PartialMessages(Message("DeepLeo", stripped, linked))
}

// PartialApology is a degraded type 1 frame.
func PartialApology(text string) string {
	return PartialMessages(Message("Apology", text, text))
}

// PartialInline carries a messageType and an inline block that folds into
// the running base.
func PartialInline(cardText, inline string) string {
	m := Message("DeepLeo", cardText, cardText)
	m["messageType"] = "InternalSearchQuery"
	card := m["adaptiveCards"].([]any)[0].(map[string]any)
	block := card["body"].([]any)[0].(map[string]any)
	block["inlines"] = []any{map[string]any{"text": inline}}
	return PartialMessages(m)
}

// PartialNoMessages is a type 1 frame with an empty message list.
func PartialNoMessages() string {
	return frame(map[string]any{"type": 1, "arguments": []any{map[string]any{"messages": []any{}}}})
}

// FinalMessages wraps messages in a successful type 2 frame.
func FinalMessages(messages ...map[string]any) string {
	msgs := make([]any, len(messages))
	for i, m := range messages {
		msgs[i] = m
	}
	return frame(map[string]any{
		"type":         2,
		"invocationId": "0",
		"item": map[string]any{
			"messages": msgs,
			"result":   map[string]any{"value": "Success", "message": "ok"},
		},
	})
}

// Final is a successful type 2 frame with one bot message.
func Final(text string) string {
	return FinalMessages(Message("DeepLeo", text, text))
}

// FinalApology is a type 2 frame whose last message is degraded.
func FinalApology(text string) string {
	return FinalMessages(
		map[string]any{"author": "user", "text": "question"},
		Message("Apology", text, text),
	)
}

// FinalError is a type 2 frame reporting a server error.
func FinalError(value, message string) string {
	return frame(map[string]any{
		"type": 2,
		"item": map[string]any{
			"result": map[string]any{"value": value, "message": message, "error": message},
		},
	})
}

// Ping is a server keepalive.
func Ping() string { return frame(map[string]any{"type": 6}) }

// Ack is a server protocol acknowledgement.
func Ack() string { return frame(map[string]any{"type": 7}) }

// Unknown is a frame of a type the client does not interpret.
func Unknown(frameType int) string {
	return frame(map[string]any{"type": frameType, "payload": "x"})
}
