package chathub

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// ContentOriginApology marks a degraded answer the server substituted for
// the real one.
const ContentOriginApology = "Apology"

// Answer is the text accumulated from the partial frames of one ask.
type Answer struct {
	// Linked is the rendered card text, citations included.
	Linked string
	// Stripped is the plain message text without links.
	Stripped string
	// Base is the folded prefix every later partial builds on. It only grows
	// through inline blocks.
	Base string
}

// PartialView is the caller visible rendering after a partial frame.
type PartialView struct {
	Text     string
	Stripped string
}

// Accumulator folds partial frames into an Answer and salvages degraded
// final frames. It is owned by a single session and is not safe for
// concurrent use.
type Accumulator struct {
	answer Answer
	raw    bool
	logger *zap.Logger
}

// NewAccumulator creates an accumulator. In raw mode no text is extracted.
func NewAccumulator(raw bool, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		raw:    raw,
		logger: logger.With(zap.String("component", "accumulator")),
	}
}

// Reset clears the accumulated text.
func (a *Accumulator) Reset() {
	a.answer = Answer{}
}

// Answer returns a copy of the accumulated text.
func (a *Accumulator) Answer() Answer {
	return a.answer
}

func (a *Accumulator) view() PartialView {
	return PartialView{Text: a.answer.Linked, Stripped: a.answer.Stripped}
}

// FoldPartial folds one type 1 frame. The boolean reports whether the frame
// carried messages at all; only those produce an update for the caller.
// Frames with a missing field leave the answer unchanged.
func (a *Accumulator) FoldPartial(f Frame) (PartialView, bool) {
	messages := gjson.GetBytes(f, "arguments.0.messages")
	if !messages.IsArray() || len(messages.Array()) == 0 {
		return a.view(), false
	}
	if a.raw {
		return a.view(), true
	}

	lead := messages.Get("0")
	if lead.Get("contentOrigin").String() == ContentOriginApology {
		return a.view(), true
	}

	body := lead.Get("adaptiveCards.0.body.0")
	if !body.IsObject() {
		return a.view(), true
	}

	base := a.answer.Base
	linked := base + body.Get("text").String()
	stripped := base + lead.Get("text").String()

	if truthy(lead.Get("messageType")) {
		inline := body.Get("inlines.0.text")
		if inline.Type != gjson.String {
			return a.view(), true
		}
		linked += inline.String() + "\n"
		base += inline.String() + "\n"
	}

	a.answer = Answer{Linked: linked, Stripped: stripped, Base: base}
	return a.view(), true
}

// Salvage replaces a degraded last message of a final frame with the
// accumulated text. It returns the frame unchanged and false when there is
// nothing to salvage.
func (a *Accumulator) Salvage(final Frame) (Frame, bool) {
	if a.answer.Linked == "" {
		return final, false
	}
	n := gjson.GetBytes(final, "item.messages.#").Int()
	if n == 0 {
		return final, false
	}
	last := "item.messages." + strconv.FormatInt(n-1, 10)
	if gjson.GetBytes(final, last+".contentOrigin").String() != ContentOriginApology {
		return final, false
	}

	out, err := sjson.SetBytes(final, last+".text", a.answer.Stripped)
	if err != nil {
		a.logger.Error("salvage rewrite failed", zap.Error(err))
		return final, false
	}
	if gjson.GetBytes(out, last+".adaptiveCards.0.body.0").IsObject() {
		out, err = sjson.SetBytes(out, last+".adaptiveCards.0.body.0.text", a.answer.Linked)
		if err != nil {
			a.logger.Error("salvage rewrite failed", zap.Error(err))
			return final, false
		}
	}

	a.logger.Warn("preserved the message from being deleted",
		zap.Int("linked_len", len(a.answer.Linked)),
		zap.Int("stripped_len", len(a.answer.Stripped)))
	return Frame(out), true
}

// truthy reports whether a JSON value would count as set: present, not
// null or false, not zero, not an empty string or container.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		if r.IsObject() {
			return len(r.Map()) > 0
		}
		return r.Exists()
	}
}
