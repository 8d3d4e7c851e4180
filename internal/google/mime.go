package google

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

var (
	scriptBlock   = regexp.MustCompile(`(?is)<script\b.*?>.*?</script\s*>`)
	styleBlock    = regexp.MustCompile(`(?is)<style\b.*?>.*?</style\s*>`)
	lineBreak     = regexp.MustCompile(`(?is)<br\s*/?>`)
	paragraphEnd  = regexp.MustCompile(`(?is)</p\s*>`)
	anyTag        = regexp.MustCompile(`(?s)<[^>]+>`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRun      = regexp.MustCompile(`\n{3,}`)
)

// ExtractPlainText walks a message part tree. A part's own body wins; among
// children the first text/plain part wins, then the first text/html part
// (stripped), and failing both the children's text is concatenated.
func ExtractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if data := bodyData(part); data != "" {
		text := DecodeBase64URL(data)
		if part.MimeType == mimeHTML {
			return StripHTML(text)
		}
		return text
	}
	if len(part.Parts) == 0 {
		return ""
	}
	for _, p := range part.Parts {
		if p != nil && p.MimeType == mimePlain {
			if data := bodyData(p); data != "" {
				return DecodeBase64URL(data)
			}
		}
	}
	for _, p := range part.Parts {
		if p != nil && p.MimeType == mimeHTML {
			if data := bodyData(p); data != "" {
				return StripHTML(DecodeBase64URL(data))
			}
		}
	}
	texts := make([]string, 0, len(part.Parts))
	for _, p := range part.Parts {
		if text := ExtractPlainText(p); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

func bodyData(part *gmail.MessagePart) string {
	if part.Body == nil {
		return ""
	}
	return part.Body.Data
}

// DecodeBase64URL decodes web-safe base64 with or without padding. Standard
// alphabet input is accepted too. Malformed input yields "". HTML entities in
// the decoded text are unescaped.
func DecodeBase64URL(data string) string {
	data = strings.NewReplacer("+", "-", "/", "_").Replace(strings.TrimSpace(data))
	data = strings.TrimRight(data, "=")
	if pad := len(data) % 4; pad != 0 {
		data += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return ""
	}
	return html.UnescapeString(strings.ToValidUTF8(string(raw), "�"))
}

// StripHTML is a lightweight HTML to text transform: script and style blocks
// are dropped, <br> and </p> become newlines, remaining tags are removed and
// runs of blank lines collapse.
func StripHTML(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = styleBlock.ReplaceAllString(s, "")
	s = lineBreak.ReplaceAllString(s, "\n")
	s = paragraphEnd.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
