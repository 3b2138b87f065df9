package rewritemdw

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	ContentTypeHeaderKey     = "Content-Type"
	ContentEncodingHeaderKey = "Content-Encoding"
	jsonMediaType            = "application/json"
)

// IsJSONContentType reports whether the response declares a json body
func IsJSONContentType(header http.Header) bool {
	return strings.Contains(strings.ToLower(header.Get(ContentTypeHeaderKey)), jsonMediaType)
}

// contentEncoding returns the normalized coding of the body, empty for identity
func contentEncoding(header http.Header) string {
	encoding := strings.ToLower(strings.TrimSpace(header.Get(ContentEncodingHeaderKey)))
	if encoding == "identity" {
		return ""
	}
	return encoding
}

// isSupportedEncoding reports whether bodies with encoding can be decoded for inspection
func isSupportedEncoding(encoding string) bool {
	switch encoding {
	case "", "gzip", "x-gzip", "deflate", "br":
		return true
	default:
		return false
	}
}

// decodeBody returns body decoded from encoding, reading at most limit
// decoded bytes when limit is positive
func decodeBody(encoding string, body []byte, limit int64) ([]byte, error) {
	var reader io.Reader

	switch encoding {
	case "":
		return body, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUndecodableBody, encoding, err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// deflate is zlib wrapped per RFC 9110 but raw streams are common
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			reader = fr
		} else {
			defer zr.Close()
			reader = zr
		}
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding %s", ErrUndecodableBody, encoding)
	}

	decoded, err := readAllLimited(reader, limit)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodableBody, encoding, err)
	}

	return decoded, nil
}

// readAllLimited reads r to EOF, failing with ErrBodyTooLarge once more
// than limit bytes have been read. A limit <= 0 reads without bound.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, limit)
	}

	return data, nil
}
