// Package locale maps the assistant's supported response languages to the
// strings each collaborator needs: the prompt directive for the model, the
// speech recognizer tag, the OCR script and the translation instruction.
package locale

import "strings"

// Locale identifies one of the supported response languages.
type Locale string

const (
	English  Locale = "en"
	Chinese  Locale = "zh"
	Japanese Locale = "ja"
	Korean   Locale = "ko"
	German   Locale = "de"
	Spanish  Locale = "es"
	French   Locale = "fr"
)

// Default is used whenever a locale is empty or unknown.
const Default = English

// DefaultSpeechTag is the recognizer tag used when the selected one is rejected.
const DefaultSpeechTag = "en-US"

// Script selects a text recognizer family.
type Script string

const (
	ScriptLatin    Script = "latin"
	ScriptChinese  Script = "chinese"
	ScriptJapanese Script = "japanese"
	ScriptKorean   Script = "korean"
)

type info struct {
	display   string
	directive string
	speechTag string
	script    Script
	language  string
}

var table = map[Locale]info{
	English:  {"English", "Please answer the following in English:", "en-US", ScriptLatin, "English"},
	Chinese:  {"中文", "请用简体中文回答下面的问题：", "zh-CN", ScriptChinese, "Chinese"},
	Japanese: {"日本語", "以下の質問には日本語で回答してください：", "ja-JP", ScriptJapanese, "Japanese"},
	Korean:   {"한국어", "다음 질문에 한국어로 대답하세요：", "ko-KR", ScriptKorean, "Korean"},
	German:   {"Deutsch", "Bitte beantworten Sie die folgende Frage auf Deutsch：", "de-DE", ScriptLatin, "German"},
	Spanish:  {"Español", "Por favor responda lo siguiente en español：", "es-ES", ScriptLatin, "Spanish"},
	French:   {"Français", "Veuillez répondre à ce qui suit en français：", "fr-FR", ScriptLatin, "French"},
}

// All returns the supported locales in a stable order.
func All() []Locale {
	return []Locale{English, Chinese, Japanese, Korean, German, Spanish, French}
}

// Parse accepts ISO codes ("de"), BCP-47 tags ("zh-CN"), display names
// ("Deutsch", "中文") and English language names ("german"). Unknown input
// yields Default and false.
func Parse(s string) (Locale, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, false
	}
	lower := strings.ToLower(s)
	if i := strings.IndexAny(lower, "-_"); i > 0 {
		lower = lower[:i]
	}
	for l, inf := range table {
		if lower == string(l) || s == inf.display || strings.EqualFold(s, inf.language) || strings.EqualFold(s, inf.display) {
			return l, true
		}
	}
	return Default, false
}

// Normalize returns l when supported, Default otherwise.
func (l Locale) Normalize() Locale {
	if _, ok := table[l]; ok {
		return l
	}
	return Default
}

func (l Locale) info() info { return table[l.Normalize()] }

// DisplayName is the language name shown to users in its own script.
func (l Locale) DisplayName() string { return l.info().display }

// Directive is the "reply in ..." line placed after the system instructions.
func (l Locale) Directive() string { return l.info().directive }

// SpeechTag is the BCP-47 tag handed to the speech recognizer.
func (l Locale) SpeechTag() string { return l.info().speechTag }

// Script is the OCR script family for text in this language.
func (l Locale) Script() Script { return l.info().script }

// LanguageName is the English name of the language.
func (l Locale) LanguageName() string { return l.info().language }

// TranslateInstruction asks the model to translate into this language and
// output nothing else.
func (l Locale) TranslateInstruction() string {
	return "Translate the following text to " + l.LanguageName() +
		". Output only the translated text; do not add any commentary or follow-up questions:"
}
