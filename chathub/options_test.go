package chathub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/edgechat/upload"
)

func TestNewAskOptions_Defaults(t *testing.T) {
	o := newAskOptions("", "fr-FR", nil)
	assert.Equal(t, StyleBalanced, o.style)
	assert.Equal(t, "fr-FR", o.locale)
	assert.False(t, o.raw)
	assert.Nil(t, o.attachment)
}

func TestNewAskOptions_Apply(t *testing.T) {
	o := newAskOptions(StyleCreative, "en-US", []AskOption{
		WithStyle(StylePrecise),
		WithRaw(true),
		WithWebpageContext("ctx"),
		WithSearchResult(true),
		WithLocale("ja-jp"),
		WithAttachment(upload.Attachment{ImageURL: "https://example.com/a.png"}),
	})
	assert.Equal(t, StylePrecise, o.style)
	assert.True(t, o.raw)
	assert.Equal(t, "ctx", o.webpageContext)
	assert.True(t, o.searchResult)
	assert.Equal(t, "ja-JP", o.locale)
	if assert.NotNil(t, o.attachment) {
		assert.Equal(t, "https://example.com/a.png", o.attachment.ImageURL)
	}
}

func TestWithLocale_IgnoresInvalid(t *testing.T) {
	o := newAskOptions("", "en-GB", []AskOption{WithLocale("not a locale!")})
	assert.Equal(t, "en-GB", o.locale)
}

func TestGuessLocale(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "posix lang", env: map[string]string{"LANG": "zh_CN.UTF-8"}, want: "zh-CN"},
		{name: "lc_all wins", env: map[string]string{"LC_ALL": "de_DE.UTF-8", "LANG": "fr_FR.UTF-8"}, want: "de-DE"},
		{name: "language only", env: map[string]string{"LANG": "ja"}, want: "ja-JP"},
		{name: "c locale", env: map[string]string{"LANG": "C.UTF-8"}, want: DefaultLocale},
		{name: "unset", env: map[string]string{}, want: DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
				t.Setenv(k, tt.env[k])
			}
			assert.Equal(t, tt.want, GuessLocale())
		})
	}
}
