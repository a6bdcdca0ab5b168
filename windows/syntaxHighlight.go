// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package windows

import (
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

// TokenType classifies a run of characters in a render script.
type TokenType int

const (
	TokenPlain TokenType = iota
	TokenKeyword
	TokenString
	TokenComment
	TokenNumber
	TokenOperator
	TokenBuiltin
	TokenPackage
	TokenRow
)

// syntaxStyles colours each token type; missing entries use the theme.
var syntaxStyles = map[TokenType]widget.TextGridStyle{
	TokenKeyword: &widget.CustomTextGridStyle{
		FGColor:   color.NRGBA{R: 0xc6, G: 0x28, B: 0x8a, A: 0xff},
		TextStyle: fyne.TextStyle{Bold: true},
	},
	TokenString:   &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x2e, G: 0x9a, B: 0x3c, A: 0xff}},
	TokenComment:  &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}, TextStyle: fyne.TextStyle{Italic: true}},
	TokenNumber:   &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}},
	TokenOperator: &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x78, G: 0x78, B: 0x78, A: 0xff}},
	TokenBuiltin:  &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x00, G: 0x97, B: 0xa7, A: 0xff}, TextStyle: fyne.TextStyle{Bold: true}},
	TokenPackage:  &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0xef, G: 0x6c, B: 0x00, A: 0xff}},
	TokenRow:      &widget.CustomTextGridStyle{FGColor: color.NRGBA{R: 0x5e, G: 0x35, B: 0xb1, A: 0xff}, TextStyle: fyne.TextStyle{Bold: true}},
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "for": true,
	"func": true, "if": true, "range": true, "return": true,
	"switch": true, "type": true, "var": true,
}

var goBuiltins = map[string]bool{
	"bool": true, "byte": true, "error": true, "float32": true,
	"float64": true, "int": true, "int64": true, "rune": true,
	"string": true, "any": true, "nil": true, "true": true,
	"false": true, "len": true, "interface": true, "map": true,
}

// scriptPackages are the packages a render script can use without importing.
var scriptPackages = map[string]bool{
	"fmt": true, "math": true, "strconv": true, "strings": true, "time": true,
}

// token is a classified run [start, end) of a line.
type token struct {
	kind       TokenType
	start, end int
}

// tokenizeLine splits a script line into classified runs.
func tokenizeLine(line string) []token {
	runes := []rune(line)
	var out []token
	for pos := 0; pos < len(runes); {
		r := runes[pos]
		switch {
		case r == ' ' || r == '\t':
			out = append(out, token{TokenPlain, pos, pos + 1})
			pos++
		case r == '/' && pos+1 < len(runes) && runes[pos+1] == '/':
			out = append(out, token{TokenComment, pos, len(runes)})
			pos = len(runes)
		case r == '"' || r == '`':
			end := scanString(runes, pos)
			out = append(out, token{TokenString, pos, end})
			pos = end
		case isDigit(r):
			end := scanWhile(runes, pos, func(r rune) bool {
				return isDigit(r) || r == '.' || r == 'e' || r == 'E' || r == 'x' || r == 'X'
			})
			out = append(out, token{TokenNumber, pos, end})
			pos = end
		case isLetter(r) || r == '_':
			end := scanWhile(runes, pos, func(r rune) bool { return isLetter(r) || isDigit(r) || r == '_' })
			out = append(out, token{wordKind(string(runes[pos:end])), pos, end})
			pos = end
		case strings.ContainsRune("+-*/%&|^<>=!:;,.()[]{}~", r):
			out = append(out, token{TokenOperator, pos, pos + 1})
			pos++
		default:
			out = append(out, token{TokenPlain, pos, pos + 1})
			pos++
		}
	}
	return out
}

func wordKind(word string) TokenType {
	switch {
	case word == "row":
		return TokenRow
	case goKeywords[word]:
		return TokenKeyword
	case goBuiltins[word]:
		return TokenBuiltin
	case scriptPackages[word]:
		return TokenPackage
	}
	return TokenPlain
}

// highlightRows turns a script into styled TextGrid rows.
func highlightRows(text string) []widget.TextGridRow {
	lines := strings.Split(text, "\n")
	rows := make([]widget.TextGridRow, len(lines))
	for i, line := range lines {
		runes := []rune(line)
		cells := make([]widget.TextGridCell, 0, len(runes))
		for _, tok := range tokenizeLine(line) {
			style := syntaxStyles[tok.kind]
			for _, r := range runes[tok.start:tok.end] {
				cells = append(cells, widget.TextGridCell{Rune: r, Style: style})
			}
		}
		rows[i] = widget.TextGridRow{Cells: cells}
	}
	return rows
}

// scanString returns the index after the string literal starting at start.
// Unclosed literals run to the end of the line.
func scanString(runes []rune, start int) int {
	quote := runes[start]
	for pos := start + 1; pos < len(runes); pos++ {
		if quote == '"' && runes[pos] == '\\' {
			pos++
			continue
		}
		if runes[pos] == quote {
			return pos + 1
		}
	}
	return len(runes)
}

func scanWhile(runes []rune, start int, ok func(rune) bool) int {
	pos := start
	for pos < len(runes) && ok(runes[pos]) {
		pos++
	}
	return pos
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
