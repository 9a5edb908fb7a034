package app

import (
	"strings"

	"golang.org/x/net/html"
)

// chunkWords splits whitespace-tokenized text into overlapping word windows.
// Window i starts at word index i*(size-overlap), so the count is always
// ceil(words/(size-overlap)) and a trailing window may consist entirely of
// overlap words. Windows can split mid-sentence.
func chunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var out []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

// normalizeContent strips HTML markup when present and collapses whitespace
// runs so chunk boundaries are stable across ingestion sources.
func normalizeContent(raw string) string {
	text := raw
	if strings.Contains(raw, "<") && strings.Contains(raw, ">") {
		text = stripHTML(raw)
	}
	return strings.Join(strings.Fields(text), " ")
}

func stripHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return sb.String()
}
