package helpers

import (
	"encoding/hex"
	"strings"
)

// HexFields decodes hex with arbitrary whitespace between digits.
// Odd digit count is padded with leading zero.
func HexFields(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func MustHex(s string) []byte {
	b, err := HexFields(s)
	if err != nil {
		panic(err)
	}
	return b
}
