package provider

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxSnippetLen = 500

// CleanSnippet strips HTML markup from a provider summary and collapses
// whitespace. News APIs routinely leak tags and entities into their
// description fields; signals built on the text should not see them.
func CleanSnippet(s string) string {
	if s == "" {
		return ""
	}

	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			text = doc.Text()
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxSnippetLen {
		cut := text[:maxSnippetLen]
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		} else {
			// no space to break on; back off any split multi-byte rune
			for len(cut) > 0 {
				r, size := utf8.DecodeLastRuneInString(cut)
				if r != utf8.RuneError || size > 1 {
					break
				}
				cut = cut[:len(cut)-1]
			}
		}
		text = cut + "…"
	}
	return text
}
