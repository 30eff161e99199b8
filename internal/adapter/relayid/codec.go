// Package relayid implements Relay-style global identifiers: base64("Type:key").
package relayid

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

type Codec struct{}

func NewCodec() Codec {
	return Codec{}
}

func (Codec) Encode(typeTag, key string) string {
	return base64.StdEncoding.EncodeToString([]byte(typeTag + ":" + key))
}

func (Codec) Decode(token string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		// clients frequently drop the padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(token, "="))
		if err != nil {
			return "", "", fmt.Errorf("%w: %q", domain.ErrDecode, token)
		}
	}

	typeTag, key, ok := strings.Cut(string(raw), ":")
	if !ok || typeTag == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", domain.ErrDecode, token)
	}
	return typeTag, key, nil
}
