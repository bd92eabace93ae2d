// Package chunk reads the brace-delimited sections of the shader text
// format:
//
//	Tag
//	{
//		Contents
//	}
//
// Chunks nest; braces inside comments or strings are not special.
package chunk

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-loader/engine/core"
)

// Find returns the text strictly between the braces of the first chunk
// named tag. The tag only matches as a whole identifier, so "Shader" does
// not match inside "VertexShader".
func Find(tag, text string) (string, error) {
	tagStart := indexToken(text, tag)
	if tagStart < 0 {
		return "", fmt.Errorf("%w: missing %s tag", core.ErrMalformedChunk, tag)
	}

	openBrace := strings.IndexByte(text[tagStart+len(tag):], '{')
	if openBrace < 0 {
		return "", fmt.Errorf("%w: missing open brace in tag %s", core.ErrMalformedChunk, tag)
	}
	openBrace += tagStart + len(tag)

	closeBrace := matchingBrace(text, openBrace)
	if closeBrace < 0 {
		return "", fmt.Errorf("%w: missing closing brace in tag %s", core.ErrMalformedChunk, tag)
	}
	return text[openBrace+1 : closeBrace], nil
}

// Get is Find for callers that treat an empty chunk as absent. Failures are
// logged.
func Get(tag, text string) string {
	content, err := Find(tag, text)
	if err != nil {
		core.LogError(err.Error())
		return ""
	}
	return content
}

// Tags lists the names of the top-level chunks of text in order.
func Tags(text string) []string {
	var tags []string
	for i := 0; i < len(text); {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			break
		}
		open += i
		if name := lastIdentifier(text[i:open]); name != "" {
			tags = append(tags, name)
		}
		end := matchingBrace(text, open)
		if end < 0 {
			break
		}
		i = end + 1
	}
	return tags
}

// matchingBrace returns the index of the '}' closing the '{' at open, or -1.
func matchingBrace(text string, open int) int {
	depth := 0
	for i := open + 1; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// indexToken finds the first occurrence of tok bounded by non-identifier
// characters.
func indexToken(text, tok string) int {
	if tok == "" {
		return -1
	}
	for from := 0; from <= len(text)-len(tok); {
		i := strings.Index(text[from:], tok)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(tok)
		if (i == 0 || !isIdentByte(text[i-1])) && (end == len(text) || !isIdentByte(text[end])) {
			return i
		}
		from = i + 1
	}
	return -1
}

func lastIdentifier(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\r' || r == '\n' })
	end := len(s)
	start := end
	for start > 0 && isIdentByte(s[start-1]) {
		start--
	}
	return s[start:end]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
