package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

// decodeKey turns a client token into an internal key, rejecting tokens of
// another node type and keys that are not UUIDs.
func decodeKey(codec port.IdentityCodec, token, typeTag string) (string, error) {
	tag, key, err := codec.Decode(strings.TrimSpace(token))
	if err != nil {
		if !errors.Is(err, domain.ErrDecode) {
			err = fmt.Errorf("%w: %v", domain.ErrDecode, err)
		}
		return "", err
	}
	if tag != typeTag {
		return "", fmt.Errorf("%w: expected %s, got %s", domain.ErrDecode, typeTag, tag)
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s key %q", domain.ErrDecode, typeTag, key)
	}
	return id.String(), nil
}
