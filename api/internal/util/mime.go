package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffMimeHTTP recognises the formats vision models accept without a hint.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP" {
		return "image/webp"
	}
	return "application/octet-stream"
}

// IsImageMIME reports whether a declared content type is in the image/* family.
func IsImageMIME(m string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(m)), "image/")
}

// MakeDataURL builds data:<mime>;base64,<payload> using standard padded base64.
func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64MaybeDataURL decodes base64. For a data URI the MIME from its prefix is returned too.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, hintMIME, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	}
	return nil, "", err
}

// PickMIME prefers the explicit type, then the data URI hint, then content sniffing.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if m := SniffMimeHTTP(data); m != "application/octet-stream" {
			return m
		}
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}
