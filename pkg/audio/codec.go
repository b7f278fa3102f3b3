package audio

import (
	"encoding/base64"
	"fmt"
)

// EncodePCM encodes raw PCM bytes into the wire's text-safe form.
func EncodePCM(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodePCM decodes a wire audio payload back into raw PCM bytes.
func DecodePCM(s string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return pcm, nil
}
