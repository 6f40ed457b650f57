package tts

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// voiceStyle maps a script emotion onto Azure express-as style and prosody
// adjustments.
type voiceStyle struct {
	Style string
	Rate  string
	Pitch string
}

var emotionStyles = map[string]voiceStyle{
	"neutral": {Style: "", Rate: "0%", Pitch: "0%"},
	"serious": {Style: "serious", Rate: "-5%", Pitch: "-2%"},
	"happy":   {Style: "cheerful", Rate: "+5%", Pitch: "+3%"},
	"sad":     {Style: "sad", Rate: "-8%", Pitch: "-3%"},
	"angry":   {Style: "angry", Rate: "+4%", Pitch: "+2%"},
	"excited": {Style: "excited", Rate: "+8%", Pitch: "+4%"},
	"calm":    {Style: "calm", Rate: "-4%", Pitch: "-2%"},
}

func styleFor(emotion string) voiceStyle {
	if style, ok := emotionStyles[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return style
	}
	return emotionStyles["neutral"]
}

// BuildSSML renders the synthesis request document for one line. When the
// emotion has an express-as style the text is wrapped in mstts:express-as;
// styled=false forces the plain neutral form regardless of emotion.
func BuildSSML(voice, language, text, emotion string, styled bool) string {
	style := styleFor(emotion)
	escaped := escapeText(text)

	var body string
	if styled && style.Style != "" {
		body = fmt.Sprintf(
			`<mstts:express-as style="%s"><prosody rate="%s" pitch="%s">%s</prosody></mstts:express-as>`,
			style.Style, style.Rate, style.Pitch, escaped)
	} else {
		body = fmt.Sprintf(`<prosody rate="%s" pitch="%s">%s</prosody>`, style.Rate, style.Pitch, escaped)
	}

	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		language, voice, body)
}

func escapeText(text string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(text)); err != nil {
		return text
	}
	return sb.String()
}
