package generate

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// decodeDataURL parses "data:<type>;base64,<payload>".
func decodeDataURL(s string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data url")
	}
	contentType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	if _, known := imageExtensions[contentType]; !known {
		return "", nil, fmt.Errorf("unsupported image type %q", contentType)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding image: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty image")
	}
	return contentType, data, nil
}
