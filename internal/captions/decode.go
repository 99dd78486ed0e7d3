package captions

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrUndecodableSubtitle reports that no candidate encoding produced clean text.
var ErrUndecodableSubtitle = errors.New("undecodable subtitle source")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type candidate struct {
	name   string
	decode func([]byte) (string, bool)
}

// candidates are tried in order; the first clean decode wins.
var candidates = []candidate{
	{"utf-8-sig", func(data []byte) (string, bool) {
		if !bytes.HasPrefix(data, utf8BOM) {
			return "", false
		}
		rest := data[len(utf8BOM):]
		return string(rest), utf8.Valid(rest)
	}},
	{"utf-8", func(data []byte) (string, bool) {
		return string(data), utf8.Valid(data)
	}},
	{"latin-1", charmapDecoder(charmap.ISO8859_1)},
	{"cp1252", charmapDecoder(charmap.Windows1252)},
}

func charmapDecoder(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		return decodeWith(cm, data)
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// DecodeSubtitle converts raw subtitle bytes to text with LF line endings,
// trying utf-8-sig, utf-8, latin-1 and cp1252 in that order.
func DecodeSubtitle(data []byte) (string, error) {
	text, _, err := DecodeSubtitleNamed(data)
	return text, err
}

// DecodeSubtitleNamed is DecodeSubtitle that also reports the matched encoding.
func DecodeSubtitleNamed(data []byte) (string, string, error) {
	for _, c := range candidates {
		text, ok := c.decode(data)
		if !ok || !isClean(text) {
			continue
		}
		return normalizeNewlines(text), c.name, nil
	}
	return "", "", ErrUndecodableSubtitle
}

// isClean rejects replacement characters and control characters other than
// tab, CR and LF. C1 controls are how a wrong single-byte guess usually shows.
func isClean(text string) bool {
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			return false
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20 || r == 0x7F:
			return false
		case r >= 0x80 && r <= 0x9F:
			return false
		}
	}
	return true
}
