// Package event defines the typed inbound events of both platforms and the
// message kind classifier. Raw webhook payloads are parsed into one of the
// two variants at the transport boundary; everything downstream works on
// typed fields.
package event

import "strings"

// Kind is the classified message kind.
type Kind string

// Message kinds. Unknown covers read receipts, delivery ACKs, and
// unsupported payloads; it is a normal, silently ignored outcome.
const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindUnknown  Kind = "unknown"
)

// IsMedia reports whether the kind requires a media relay before forwarding.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// kindFromFileType maps a declared attachment media type to a Kind by
// substring match ("pdf" and "document" both classify as document).
func kindFromFileType(fileType string) Kind {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	switch {
	case strings.Contains(ft, "image"):
		return KindImage
	case strings.Contains(ft, "video"):
		return KindVideo
	case strings.Contains(ft, "audio"):
		return KindAudio
	case strings.Contains(ft, "pdf"), strings.Contains(ft, "document"):
		return KindDocument
	}
	return KindUnknown
}
