package sourcemap

import (
	"errors"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		idx[base64Chars[i]] = int8(i)
	}
	return idx
}()

// ErrInvalidMappings is returned for malformed mappings strings.
var ErrInvalidMappings = errors.New("invalid source map mappings")

const (
	vlqShift        = 5
	vlqContinuation = 1 << vlqShift
	vlqMask         = vlqContinuation - 1
)

// appendVLQ appends the base64 VLQ encoding of v.
func appendVLQ(b *strings.Builder, v int) {
	n := v << 1
	if v < 0 {
		n = (-v << 1) | 1
	}
	for {
		digit := n & vlqMask
		n >>= vlqShift
		if n > 0 {
			digit |= vlqContinuation
		}
		b.WriteByte(base64Chars[digit])
		if n == 0 {
			return
		}
	}
}

// readVLQ decodes one value from s starting at i and returns the value and
// the index after it.
func readVLQ(s string, i int) (int, int, error) {
	var n, shift int
	for {
		if i >= len(s) {
			return 0, i, ErrInvalidMappings
		}
		digit := base64Index[s[i]]
		if digit < 0 {
			return 0, i, ErrInvalidMappings
		}
		i++
		n |= int(digit&vlqMask) << shift
		if digit&vlqContinuation == 0 {
			break
		}
		shift += vlqShift
	}
	v := n >> 1
	if n&1 == 1 {
		v = -v
	}
	return v, i, nil
}
