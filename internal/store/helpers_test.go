package store_test

import (
	"encoding/base64"
	"strings"
)

func replaceB64(s string, from, to []byte) string {
	return strings.Replace(s,
		base64.StdEncoding.EncodeToString(from),
		base64.StdEncoding.EncodeToString(to), 1)
}
