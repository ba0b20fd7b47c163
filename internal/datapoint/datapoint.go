// Package datapoint maps catalog entities and their images to vector index ids.
//
// Text datapoints use the product id verbatim. Image datapoints use
// "{product_id}_{position}". Decoding splits on the last underscore, so a
// product id that itself ends in "_<digits>" cannot be told apart from an
// image id of a shorter product id; callers decode only within a known scope.
package datapoint

import (
	"strconv"
	"strings"
)

// UnpositionedSentinel is the position given to images without an explicit one.
const UnpositionedSentinel = 999

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Namespace is the vector index namespace holding datapoints of this kind.
func (k Kind) Namespace() string {
	switch k {
	case KindImage:
		return "images"
	default:
		return "text"
	}
}

func EncodeText(productID string) string {
	return strings.TrimSpace(productID)
}

// EncodeImage builds "{productID}_{position}", using the sentinel when position is nil.
func EncodeImage(productID string, position *int) string {
	pos := UnpositionedSentinel
	if position != nil {
		pos = *position
	}
	return strings.TrimSpace(productID) + "_" + strconv.Itoa(pos)
}

// Decode parses an image datapoint id. ok is false for ids with no underscore,
// an empty product part, or a suffix that is not a canonical non-negative
// integer (digits only, no sign, no leading zeros), so a decoded id always
// re-encodes to itself.
func Decode(id string) (productID string, position int, ok bool) {
	id = strings.TrimSpace(id)
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	suffix := id[i+1:]
	if !canonicalDigits(suffix) {
		return "", 0, false
	}
	pos, err := strconv.Atoi(suffix)
	if err != nil {
		return "", 0, false
	}
	return id[:i], pos, true
}

func canonicalDigits(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DecodeFor resolves a datapoint id to its product id within a scope.
func DecodeFor(kind Kind, id string) (string, bool) {
	if kind == KindText {
		pid := strings.TrimSpace(id)
		return pid, pid != ""
	}
	pid, _, ok := Decode(id)
	return pid, ok
}
