package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ParseModeHTML is the Bot API parse mode for HTML-formatted text.
const ParseModeHTML = "HTML"

var headingPrefix = regexp.MustCompile(`^\s*#+\s*`)

// Sanitize strips markdown heading markers and hashtag signs that Telegram
// would otherwise render literally (or as hashtag links), line by line.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		line = headingPrefix.ReplaceAllString(line, "")
		lines[i] = stripHashtags(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stripHashtags removes '#' when it opens a hashtag: followed by a word
// character and not preceded by one.
func stripHashtags(line string) string {
	if !strings.Contains(line, "#") {
		return line
	}

	runes := []rune(line)
	var b strings.Builder
	b.Grow(len(line))
	for i, r := range runes {
		if r == '#' && i+1 < len(runes) && isWordRune(runes[i+1]) && (i == 0 || !isWordRune(runes[i-1])) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the three characters Telegram HTML requires.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var (
	inlineCodePattern  = regexp.MustCompile("`([^`\n]+)`")
	linkPattern        = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\s]+)\)`)
	bulletPattern      = regexp.MustCompile(`(?m)^([ \t]*)[*-][ \t]+`)
	placeholderPattern = regexp.MustCompile(`\x00(\d+)\x00`)
)

// FormatHTML renders common markdown to Telegram HTML. Text is escaped
// first; then fenced blocks become <pre>, inline code <code>, links <a>,
// **bold**/__bold__ <b>, *italic*/_italic_ <i> and ~~strike~~ <s>.
// Malformed nesting is passed through; Telegram rejects it and the caller
// falls back to plain text.
func FormatHTML(text string) string {
	// NUL delimits placeholders in formatInline.
	text = strings.ReplaceAll(text, "\x00", "")

	var out strings.Builder
	lines := strings.Split(text, "\n")

	var segment []string
	var code []string
	inCode := false

	flushSegment := func() {
		if len(segment) == 0 {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(formatInline(strings.Join(segment, "\n")))
		segment = segment[:0]
	}
	flushCode := func() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString("<pre>")
		out.WriteString(EscapeHTML(strings.Join(code, "\n")))
		out.WriteString("</pre>")
		code = code[:0]
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inCode {
				flushCode()
			} else {
				flushSegment()
			}
			inCode = !inCode
			continue
		}
		if inCode {
			code = append(code, line)
		} else {
			segment = append(segment, line)
		}
	}

	if inCode {
		flushCode()
	}
	flushSegment()
	return out.String()
}

// formatInline renders a block of non-fenced text.
func formatInline(text string) string {
	var stash []string
	hold := func(html string) string {
		stash = append(stash, html)
		return fmt.Sprintf("\x00%d\x00", len(stash)-1)
	}

	// Code spans and links are rendered first and held aside so that the
	// emphasis patterns never touch their content.
	text = inlineCodePattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := inlineCodePattern.FindStringSubmatch(m)[1]
		return hold("<code>" + EscapeHTML(inner) + "</code>")
	})
	text = linkPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := linkPattern.FindStringSubmatch(m)
		href := strings.ReplaceAll(EscapeHTML(sub[2]), `"`, "&quot;")
		return hold(`<a href="` + href + `">` + EscapeHTML(sub[1]) + "</a>")
	})

	text = EscapeHTML(text)
	text = bulletPattern.ReplaceAllString(text, "${1}• ")
	text = emphasize([]rune(text))

	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		idx, err := strconv.Atoi(placeholderPattern.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(stash) {
			return m
		}
		return stash[idx]
	})
}

// emphasize converts **bold**, __bold__, ~~strike~~, *italic* and _italic_
// spans, recursing into each span so nested emphasis renders. Spans never
// cross a newline; unmatched markers are kept literally.
func emphasize(runes []rune) string {
	var b strings.Builder
	n := len(runes)

	for i := 0; i < n; {
		r := runes[i]
		double := i+1 < n && runes[i+1] == r

		switch {
		case double && (r == '*' || r == '~' || (r == '_' && leftFlank(runes, i))):
			end := findDoubleClosing(runes, i+2, r)
			if end > i+2 && (r != '_' || rightFlank(runes, end+1)) {
				tag := "b"
				if r == '~' {
					tag = "s"
				}
				writeTag(&b, tag, emphasize(runes[i+2:end]))
				i = end + 2
				continue
			}
		case r == '*' && !double && opensSpan(runes, i):
			if end := findSingleClosing(runes, i+1, '*'); end > 0 {
				writeTag(&b, "i", emphasize(runes[i+1:end]))
				i = end + 1
				continue
			}
		case r == '_' && !double && leftFlank(runes, i) && opensSpan(runes, i):
			if end := findSingleClosing(runes, i+1, '_'); end > 0 {
				writeTag(&b, "i", emphasize(runes[i+1:end]))
				i = end + 1
				continue
			}
		}

		if double {
			// Keep an unmatched pair together so its second rune cannot
			// open a single-rune span.
			b.WriteRune(r)
			i++
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

func writeTag(b *strings.Builder, tag, inner string) {
	b.WriteString("<" + tag + ">")
	b.WriteString(inner)
	b.WriteString("</" + tag + ">")
}

// opensSpan reports whether the marker at i is followed by a non-space.
func opensSpan(runes []rune, i int) bool {
	return i+1 < len(runes) && !unicode.IsSpace(runes[i+1])
}

// leftFlank reports whether position i is not preceded by a word rune.
func leftFlank(runes []rune, i int) bool {
	return i == 0 || !isWordRune(runes[i-1])
}

// rightFlank reports whether position i is not a word rune.
func rightFlank(runes []rune, i int) bool {
	return i >= len(runes) || !isWordRune(runes[i])
}

// findDoubleClosing returns the index of the first rune of the next delim
// pair on the same line, or -1.
func findDoubleClosing(runes []rune, start int, delim rune) int {
	for i := start; i < len(runes)-1; i++ {
		if runes[i] == '\n' {
			return -1
		}
		if runes[i] == delim && runes[i+1] == delim {
			return i
		}
	}
	return -1
}

// findSingleClosing returns the index of a lone delim on the same line that
// follows a non-space, skipping over doubled delimiters, or -1.
func findSingleClosing(runes []rune, start int, delim rune) int {
	for i := start; i < len(runes); i++ {
		switch {
		case runes[i] == '\n':
			return -1
		case runes[i] != delim:
		case i+1 < len(runes) && runes[i+1] == delim:
			i++
		case i > start && !unicode.IsSpace(runes[i-1]) && (delim != '_' || rightFlank(runes, i+1)):
			return i
		}
	}
	return -1
}
