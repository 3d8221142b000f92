package chathub

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Style is the conversation tone.
type Style string

const (
	StyleCreative Style = "creative"
	StyleBalanced Style = "balanced"
	StylePrecise  Style = "precise"
)

var baseOptionSets = []string{
	"nlu_direct_response_filter",
	"deepleo",
	"disable_emoji_spoken_text",
	"responsible_ai_policy_235",
	"enablemm",
	"dv3sugg",
	"iyxapbing",
	"iycapbing",
	"enable_user_consent",
	"fluxmemcst",
	"gldcl1p",
	"uquopt",
	"eredirecturl",
}

var styleOptionSets = map[Style][]string{
	StyleCreative: {"h3imaginative", "clgalileo", "gencontentv3"},
	StyleBalanced: {"galileo", "saharagenconv5"},
	StylePrecise:  {"h3precise", "clgalileo", "gencontentv3"},
}

// ParseStyle maps a case-insensitive name to a Style.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleBalanced, nil
	case StyleCreative, StyleBalanced, StylePrecise:
		return st, nil
	default:
		return "", fmt.Errorf("unknown conversation style %q", s)
	}
}

// OptionSets returns the server option flags for the style.
func (s Style) OptionSets() []string {
	extra, ok := styleOptionSets[s]
	if !ok {
		extra = styleOptionSets[StyleBalanced]
	}
	out := make([]string, 0, len(baseOptionSets)+len(extra))
	out = append(out, baseOptionSets...)
	return append(out, extra...)
}

// Tone is the capitalized style name sent with each message.
func (s Style) Tone() string {
	switch s {
	case StyleCreative:
		return "Creative"
	case StylePrecise:
		return "Precise"
	default:
		return "Balanced"
	}
}

// RequestInput carries everything a builder may put in the request frame.
type RequestInput struct {
	Prompt         string
	Style          Style
	Locale         string
	WebpageContext string
	SearchResult   bool
	ImageURL       string
	State          ConversationState
}

// RequestBuilder produces the outbound request payload. The session only
// encodes and sends the result.
type RequestBuilder interface {
	Build(in RequestInput) (any, error)
}

// RequestBuilderFunc adapts a function to RequestBuilder.
type RequestBuilderFunc func(in RequestInput) (any, error)

// Build calls f.
func (f RequestBuilderFunc) Build(in RequestInput) (any, error) { return f(in) }

type invocation struct {
	Arguments    []argument `json:"arguments"`
	InvocationID string     `json:"invocationId"`
	Target       string     `json:"target"`
	Type         int        `json:"type"`
}

type argument struct {
	Source                string            `json:"source"`
	OptionsSets           []string          `json:"optionsSets"`
	IsStartOfSession      bool              `json:"isStartOfSession"`
	Message               message           `json:"message"`
	Tone                  string            `json:"tone"`
	RequestID             string            `json:"requestId"`
	ConversationSignature string            `json:"conversationSignature,omitempty"`
	Participant           participant       `json:"participant"`
	ConversationID        string            `json:"conversationId"`
	PreviousMessages      []previousMessage `json:"previousMessages,omitempty"`
}

type message struct {
	Locale      string `json:"locale"`
	Market      string `json:"market"`
	Region      string `json:"region,omitempty"`
	Author      string `json:"author"`
	InputMethod string `json:"inputMethod"`
	Text        string `json:"text"`
	MessageType string `json:"messageType"`
	RequestID   string `json:"requestId"`
	MessageID   string `json:"messageId"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type participant struct {
	ID string `json:"id"`
}

type previousMessage struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	ContextType string `json:"contextType"`
	MessageType string `json:"messageType"`
	MessageID   string `json:"messageId"`
}

// DefaultRequestBuilder builds the ChatHub type 4 invocation. The invocation
// id increments on every Build, so one builder should serve one
// conversation.
type DefaultRequestBuilder struct {
	invocations atomic.Int64
	newID       func() string
}

// NewRequestBuilder creates the default builder.
func NewRequestBuilder() *DefaultRequestBuilder {
	return &DefaultRequestBuilder{newID: uuid.NewString}
}

// Build implements RequestBuilder.
func (b *DefaultRequestBuilder) Build(in RequestInput) (any, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}
	style := in.Style
	if style == "" {
		style = StyleBalanced
	}
	locale := in.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	n := b.invocations.Add(1) - 1
	reqID := b.newID()

	messageType := "Chat"
	if in.SearchResult {
		messageType = "SearchQuery"
	}

	arg := argument{
		Source:           "cib",
		OptionsSets:      style.OptionSets(),
		IsStartOfSession: n == 0,
		Message: message{
			Locale:      locale,
			Market:      locale,
			Region:      regionOf(locale),
			Author:      "user",
			InputMethod: "Keyboard",
			Text:        in.Prompt,
			MessageType: messageType,
			RequestID:   reqID,
			MessageID:   reqID,
			ImageURL:    in.ImageURL,
		},
		Tone:                  style.Tone(),
		RequestID:             reqID,
		ConversationSignature: in.State.ConversationSignature,
		Participant:           participant{ID: in.State.ClientID},
		ConversationID:        in.State.ConversationID,
	}
	if in.WebpageContext != "" {
		arg.PreviousMessages = []previousMessage{{
			Author:      "user",
			Description: in.WebpageContext,
			ContextType: "WebPage",
			MessageType: "Context",
			MessageID:   "discover-web--page-ping-mriduna-----",
		}}
	}

	return invocation{
		Arguments:    []argument{arg},
		InvocationID: strconv.FormatInt(n, 10),
		Target:       "chat",
		Type:         TypeInvocation,
	}, nil
}

func regionOf(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i >= 0 && i+1 < len(locale) {
		return strings.ToUpper(locale[i+1:])
	}
	return ""
}
