package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_Text(t *testing.T) {
	zh := NewCatalog("zh-CN")
	assert.Equal(t, "请在50秒内发送2张图片...", zh.Text(MsgWaitPromptMultiple, 50, 2))
	assert.Equal(t, "请提供自定义提示词", zh.Text(MsgNeedPrompt))

	en := NewCatalog("en-US")
	assert.Equal(t, "Please send 2 image(s) within 50 seconds...", en.Text(MsgWaitPromptMultiple, 50, 2))
}

func TestCatalog_UnknownLocaleFallsBack(t *testing.T) {
	c := NewCatalog("fr-FR")
	assert.Equal(t, DefaultLocale, c.Locale())
	assert.Equal(t, "正在处理图片，请稍候...", c.Text(MsgProcessing))
}

func TestCatalog_UnknownKey(t *testing.T) {
	assert.Equal(t, "lmarena.messages.nope", NewCatalog("en-US").Text(Key("nope")))
}

func TestCatalog_EveryLocaleHasEveryKey(t *testing.T) {
	for _, locale := range Locales() {
		for key := range catalogs[DefaultLocale] {
			_, ok := catalogs[locale][key]
			assert.True(t, ok, "%s missing %s", locale, key)
		}
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "a {0} b", Format("a {0} b"))
	assert.Equal(t, "1 and {1}", Format("{0} and {1}", 1))
	assert.Equal(t, "x-x", Format("{0}-{0}", "x"))
}
