package codes

import (
	"strings"
)

// WagonClass is the comfort class encoded in the last letter of a wagon code
type WagonClass rune

const (
	ClassCoupe     WagonClass = 'К'
	ClassPlatzkart WagonClass = 'П'
	ClassLuxury    WagonClass = 'Л'
)

// Rank orders classes coupe < platzkart < luxury
func (c WagonClass) Rank() int {
	switch c {
	case ClassCoupe:
		return 0
	case ClassPlatzkart:
		return 1
	case ClassLuxury:
		return 2
	default:
		return 3
	}
}

func (c WagonClass) String() string {
	switch c {
	case ClassCoupe:
		return "coupe"
	case ClassPlatzkart:
		return "platzkart"
	case ClassLuxury:
		return "luxury"
	default:
		return "unknown"
	}
}

// WagonCode is a 2-digit position followed by a class letter, e.g. "05К"
type WagonCode string

// ParseWagonCode trims raw and checks it against the wagon code grammar
func ParseWagonCode(raw string) (WagonCode, error) {
	s := strings.TrimSpace(raw)
	if !wagonCodePattern.MatchString(s) {
		return "", malformed("wagon code", raw, `must look like "01К", "02П" or "03Л" (К coupe, П platzkart, Л luxury)`)
	}
	return WagonCode(s), nil
}

// ParseWagonCodes parses every element of raw, stopping at the first bad one
func ParseWagonCodes(raw []string) ([]WagonCode, error) {
	out := make([]WagonCode, 0, len(raw))
	for _, r := range raw {
		w, err := ParseWagonCode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Position returns the numeric value of the 2-digit prefix
func (w WagonCode) Position() int {
	if len(w) < 2 {
		return 0
	}
	return int(w[0]-'0')*10 + int(w[1]-'0')
}

// Class returns the class letter following the position digits
func (w WagonCode) Class() WagonClass {
	if len(w) < 3 {
		return 0
	}
	r := []rune(string(w[2:]))
	return WagonClass(r[0])
}

func (w WagonCode) String() string {
	return string(w)
}

// Strings converts wagon codes back to plain strings
func Strings(ws []WagonCode) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = string(w)
	}
	return out
}
