package query

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/upb/trailguard/repositories"
	"github.com/upb/trailguard/services"
)

// EncodeToken turns a store continuation key into an opaque page token.
// A nil or empty key encodes to "".
func EncodeToken(key repositories.Key) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken reverses EncodeToken. Tokens written with the standard
// alphabet or with padding are accepted too.
func DecodeToken(token string) (repositories.Key, error) {
	data, err := decodeBase64(strings.TrimSpace(token))
	if err != nil {
		return nil, services.NewInvalidArgument("nextToken", "nextToken is not valid base64")
	}

	var key repositories.Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, services.NewInvalidArgument("nextToken", "nextToken is not a valid continuation key")
	}
	if len(key) == 0 {
		return nil, services.NewInvalidArgument("nextToken", "nextToken is empty")
	}
	if !key.Valid() {
		return nil, services.NewInvalidArgument("nextToken", "nextToken is missing key attributes")
	}
	return key, nil
}

func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
