package handlers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key names a user-facing message.
type Key string

// Message keys.
const (
	MsgWaitPrompt         Key = "waitprompt"
	MsgWaitPromptMultiple Key = "waitpromptmultiple"
	MsgCustomPrompt       Key = "customprompt"
	MsgInvalidImage       Key = "invalidimage"
	MsgProcessing         Key = "processing"
	MsgFailed             Key = "failed"
	MsgError              Key = "error"
	MsgFallback           Key = "fallback"
	MsgNeedPrompt         Key = "needprompt"
	MsgNeedImages         Key = "needimages"
	MsgRateLimited        Key = "ratelimited"
)

// DefaultLocale is used for unknown locales and missing keys.
const DefaultLocale = "zh-CN"

var catalogs = map[string]map[Key]string{
	"zh-CN": {
		MsgWaitPrompt:         "请在{0}秒内发送一张图片...",
		MsgWaitPromptMultiple: "请在{0}秒内发送{1}张图片...",
		MsgCustomPrompt:       "请在{0}秒内输入自定义提示词...",
		MsgInvalidImage:       "未检测到有效的图片，请重新发送带图片的消息",
		MsgProcessing:         "正在处理图片，请稍候...",
		MsgFailed:             "图片生成失败，请稍后重试",
		MsgError:              "处理过程中发生错误，请稍后重试",
		MsgFallback:           "原始方案失败，正在尝试后备方案...",
		MsgNeedPrompt:         "请提供自定义提示词",
		MsgNeedImages:         "请提供至少一张图片",
		MsgRateLimited:        "操作过于频繁，请稍后再试",
	},
	"en-US": {
		MsgWaitPrompt:         "Please send an image within {0} seconds...",
		MsgWaitPromptMultiple: "Please send {1} image(s) within {0} seconds...",
		MsgCustomPrompt:       "Please enter a custom prompt within {0} seconds...",
		MsgInvalidImage:       "No valid image found, please send a message with an image",
		MsgProcessing:         "Processing your image, please wait...",
		MsgFailed:             "Image generation failed, please try again later",
		MsgError:              "Something went wrong while processing, please try again later",
		MsgFallback:           "The primary service failed, trying the backup service...",
		MsgNeedPrompt:         "Please provide a custom prompt",
		MsgNeedImages:         "Please provide at least one image",
		MsgRateLimited:        "Too many requests, please slow down",
	},
}

// Catalog renders messages for one locale.
type Catalog struct {
	locale string
}

// NewCatalog returns the catalog for locale, falling back to DefaultLocale.
func NewCatalog(locale string) *Catalog {
	if _, ok := catalogs[locale]; !ok {
		locale = DefaultLocale
	}
	return &Catalog{locale: locale}
}

// Locale returns the effective locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Text renders key with positional arguments substituted for {0}, {1}, ...
// An unknown key renders as its qualified name so the gap is visible.
func (c *Catalog) Text(key Key, args ...interface{}) string {
	tmpl, ok := catalogs[c.locale][key]
	if !ok {
		if tmpl, ok = catalogs[DefaultLocale][key]; !ok {
			return "lmarena.messages." + string(key)
		}
	}
	return Format(tmpl, args...)
}

// Format replaces {i} placeholders with args[i]. Placeholders without an
// argument are left as they are.
func Format(tmpl string, args ...interface{}) string {
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(args))
	for i, arg := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(arg))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Locales lists the supported locales.
func Locales() []string {
	out := make([]string, 0, len(catalogs))
	for l := range catalogs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
