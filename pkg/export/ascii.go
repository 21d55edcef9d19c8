package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var vietnameseLetters = strings.NewReplacer("đ", "d", "Đ", "D")

// FoldASCII strips diacritics so text renders with the PDF core fonts ("Nguyễn Văn An" -> "Nguyen Van An").
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, vietnameseLetters.Replace(s))
	if err != nil {
		return s
	}
	return folded
}
