// Package validation checks uploads before they are queued for conversion.
package validation

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// ErrDisallowedFileType is returned when a file type is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,
}

const sniffLen = 512

// ValidateMagicBytes sniffs the container format from the first bytes of
// reader and rewinds it. Matroska and AVI are detected here because
// http.DetectContentType does not tell them apart from WebM and WAV.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}
	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = sniffVideo(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	return mime, allowedMIMETypes[mime], nil
}

var (
	ebmlMagic     = []byte{0x1A, 0x45, 0xDF, 0xA3}
	webmDocType   = []byte{0x42, 0x82, 0x84, 'w', 'e', 'b', 'm'}
	riffMagic     = []byte("RIFF")
	aviFormType   = []byte("AVI ")
	ftypBoxType   = []byte("ftyp")
	quickTimeMark = []byte("qt  ")
)

func sniffVideo(buf []byte) string {
	switch {
	case bytes.HasPrefix(buf, ebmlMagic):
		if bytes.Contains(buf, webmDocType) {
			return "video/webm"
		}
		return "video/x-matroska"
	case len(buf) >= 12 && bytes.Equal(buf[:4], riffMagic) && bytes.Equal(buf[8:12], aviFormType):
		return "video/x-msvideo"
	case len(buf) >= 12 && bytes.Equal(buf[4:8], ftypBoxType):
		if bytes.Equal(buf[8:12], quickTimeMark) {
			return "video/quicktime"
		}
		return "video/mp4"
	}
	return ""
}
