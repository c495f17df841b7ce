package web

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// extractMetadata pulls the title and description out of an HTML stream. It
// reads at most maxPreviewBody bytes and stops at the end of <head>, since
// the metadata of interest lives there.
func extractMetadata(r io.Reader) (title, description string) {
	tokenizer := html.NewTokenizer(io.LimitReader(r, maxPreviewBody))
	var inTitle bool

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), strings.TrimSpace(description)

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = true
			case "meta":
				name, property, content := metaAttrs(token)
				if content == "" {
					continue
				}
				switch {
				case property == "og:title" && title == "":
					title = content
				case property == "og:description" && description == "":
					description = content
				case name == "description" && description == "":
					description = content
				}
			case "body":
				return strings.TrimSpace(title), strings.TrimSpace(description)
			}

		case html.EndTagToken:
			if tokenizer.Token().Data == "title" {
				inTitle = false
			}

		case html.TextToken:
			if inTitle && title == "" {
				title = tokenizer.Token().Data
			}
		}
	}
}

func metaAttrs(token html.Token) (name, property, content string) {
	for _, attr := range token.Attr {
		switch attr.Key {
		case "name":
			name = strings.ToLower(attr.Val)
		case "property":
			property = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	return name, property, content
}
