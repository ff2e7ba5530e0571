package provider

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURL is returned when an input image is not a decodable data URI.
var ErrInvalidDataURL = errors.New("provider: invalid data URL")

// IsDataURL reports whether s is an embedded-binary data URI.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURL decodes a base64 data URI (data:<mime>;base64,<payload>) into
// raw bytes and its MIME type. The MIME type defaults to image/png when the
// header omits it.
func DecodeDataURL(s string) (data []byte, mimeType string, err error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, "", ErrInvalidDataURL
	}

	mimeType = "image/png"
	if rest, found := strings.CutPrefix(header, "data:"); found {
		if mime, _, hasParams := strings.Cut(rest, ";"); hasParams && mime != "" {
			mimeType = mime
		}
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidDataURL
	}
	return data, mimeType, nil
}
