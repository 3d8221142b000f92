package chathub

import (
	"os"
	"strings"

	"golang.org/x/text/language"

	"github.com/BaSui01/edgechat/upload"
)

// DefaultLocale is used when nothing usable is found in the environment.
const DefaultLocale = "en-US"

// askOptions holds the per-ask settings.
type askOptions struct {
	style          Style
	raw            bool
	webpageContext string
	searchResult   bool
	locale         string
	attachment     *upload.Attachment
}

// AskOption configures one Ask call.
type AskOption func(*askOptions)

// WithStyle sets the conversation tone.
func WithStyle(s Style) AskOption {
	return func(o *askOptions) { o.style = s }
}

// WithRaw yields every non-control frame verbatim instead of extracted
// text.
func WithRaw(raw bool) AskOption {
	return func(o *askOptions) { o.raw = raw }
}

// WithWebpageContext attaches page text as prior context.
func WithWebpageContext(ctx string) AskOption {
	return func(o *askOptions) { o.webpageContext = ctx }
}

// WithSearchResult asks the server to treat the prompt as a search query.
func WithSearchResult(search bool) AskOption {
	return func(o *askOptions) { o.searchResult = search }
}

// WithLocale overrides the guessed locale. Invalid tags are ignored.
func WithLocale(locale string) AskOption {
	return func(o *askOptions) {
		if tag, err := language.Parse(locale); err == nil {
			o.locale = tag.String()
		}
	}
}

// WithAttachment uploads an image before the request is sent.
func WithAttachment(att upload.Attachment) AskOption {
	return func(o *askOptions) { o.attachment = &att }
}

func newAskOptions(defaultStyle Style, defaultLocale string, opts []AskOption) askOptions {
	o := askOptions{style: defaultStyle, locale: defaultLocale}
	for _, opt := range opts {
		opt(&o)
	}
	if o.style == "" {
		o.style = StyleBalanced
	}
	if o.locale == "" {
		o.locale = GuessLocale()
	}
	return o
}

// GuessLocale derives a BCP 47 locale from LC_ALL, LC_MESSAGES or LANG.
func GuessLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if loc := normalizeLocale(os.Getenv(key)); loc != "" {
			return loc
		}
	}
	return DefaultLocale
}

// normalizeLocale turns POSIX values such as "zh_CN.UTF-8" into "zh-CN".
func normalizeLocale(v string) string {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	v = strings.ReplaceAll(v, "_", "-")
	if v == "" || v == "C" || v == "POSIX" {
		return ""
	}
	tag, err := language.Parse(v)
	if err != nil || tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No {
		return ""
	}
	return base.String() + "-" + region.String()
}
