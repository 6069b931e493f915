package parser

import "strings"

type tagKind int

const (
	// tagNone: not one of our tags; the '<' is literal text.
	tagNone tagKind = iota
	// tagPartial: the text ends inside what may still become one of our
	// tags; the caller must hold position and wait for more input.
	tagPartial
	// tagOK: a fully parsed artifact or action tag.
	tagOK
)

// tag is a fully scanned artifact or action tag.
type tag struct {
	raw     string // exact tag text, for literal fallback
	name    string
	closing bool
	attrs   map[string]string
	length  int
}

// scanTag inspects s, which starts at a '<', and classifies it.
//
// The scan is quote-aware so attribute values may contain '>' without
// ending the tag. Attribute order and surrounding whitespace are
// irrelevant. A '<' inside an unterminated tag makes it malformed
// (tagNone) rather than swallowing the rest of the stream.
func scanTag(s string) (tag, tagKind) {
	i := 1
	closing := false
	if i < len(s) && s[i] == '/' {
		closing = true
		i++
	}

	nameStart := i
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	name := s[nameStart:i]
	atEnd := i == len(s)

	if name != artifactTagName && name != actionTagName {
		// A truncated prefix of one of our names may still complete.
		if atEnd && (name == "" || strings.HasPrefix(artifactTagName, name) || strings.HasPrefix(actionTagName, name)) {
			return tag{}, tagPartial
		}
		return tag{}, tagNone
	}
	if atEnd {
		// The name matched but more name bytes may still arrive.
		return tag{}, tagPartial
	}

	attrStart := i
	var quote byte
	for ; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '>':
			t := tag{
				raw:     s[:i+1],
				name:    name,
				closing: closing,
				length:  i + 1,
			}
			if !closing {
				t.attrs = parseAttrs(s[attrStart:i])
			}
			return t, tagOK
		case '<':
			return tag{}, tagNone
		}
	}
	return tag{}, tagPartial
}

// parseAttrs parses the attribute region of an opening tag into a map.
// Accepts key="value", key='value' and bare key=value pairs in any order
// with arbitrary whitespace; a key without a value maps to "".
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		keyStart := i
		for i < len(s) && s[i] != '=' && !isSpace(s[i]) {
			i++
		}
		key := s[keyStart:i]
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != '=' {
			if key != "" {
				attrs[key] = ""
			}
			continue
		}
		i++ // consume '='
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		var val string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			q := s[i]
			i++
			if end := strings.IndexByte(s[i:], q); end >= 0 {
				val = s[i : i+end]
				i += end + 1
			} else {
				val = s[i:]
				i = len(s)
			}
		} else {
			valStart := i
			for i < len(s) && !isSpace(s[i]) {
				i++
			}
			val = s[valStart:i]
		}
		if key != "" {
			attrs[key] = val
		}
	}
	return attrs
}

// findActionClose locates the literal action closing tag in a body.
//
// Returns (idx, tagLen, 0) when the tag is fully present: body content
// ends at idx and the tag occupies tagLen bytes. Otherwise returns
// (-1, 0, holdback) where holdback is the number of trailing bytes that
// may still turn out to begin the closing tag and must not be consumed as
// content yet. Occurrences of the tag text followed by anything other
// than optional whitespace and '>' are ordinary content.
func findActionClose(s string) (idx, tagLen, holdback int) {
	const target = "</" + actionTagName

	from := 0
	for {
		k := strings.Index(s[from:], target)
		if k < 0 {
			break
		}
		k += from
		j := k + len(target)
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j >= len(s) {
			// The chunk ends inside the (possible) closing tag.
			return -1, 0, len(s) - k
		}
		if s[j] == '>' {
			return k, j + 1 - k, 0
		}
		from = k + 1
	}

	// No full occurrence: a proper prefix of the tag may end the chunk.
	max := len(target) - 1
	if max > len(s) {
		max = len(s)
	}
	for l := max; l > 0; l-- {
		if s[len(s)-l:] == target[:l] {
			return -1, 0, l
		}
	}
	return -1, 0, 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
