package idgen

import (
	"errors"
	"fmt"
	"math"
)

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var ErrOverflow = errors.New("base62 value overflows int64")

var base62Index [256]int8

func init() {
	for i := range base62Index {
		base62Index[i] = -1
	}
	for i := 0; i < len(base62Chars); i++ {
		base62Index[base62Chars[i]] = int8(i)
	}
}

// Encode renders a non-negative number in base62. Negative input encodes as "0".
func Encode(num int64) string {
	if num <= 0 {
		return "0"
	}

	// 11 digits cover math.MaxInt64.
	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = base62Chars[num%62]
		num /= 62
	}
	return string(buf[i:])
}

func Decode(str string) (int64, error) {
	if str == "" {
		return 0, fmt.Errorf("empty string cannot be decoded")
	}

	var num int64
	for i := 0; i < len(str); i++ {
		val := base62Index[str[i]]
		if val == -1 {
			return 0, fmt.Errorf("invalid base62 character: %c", str[i])
		}
		if num > (math.MaxInt64-int64(val))/62 {
			return 0, ErrOverflow
		}
		num = num*62 + int64(val)
	}
	return num, nil
}
