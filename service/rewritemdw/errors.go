package rewritemdw

import "errors"

var (
	ErrMalformedJSONBody = errors.New("upstream declared a json response but the body is not valid json")
	ErrUndecodableBody   = errors.New("upstream response body could not be decoded")
	ErrBodyTooLarge      = errors.New("upstream json response body exceeds the rewrite limit")
	ErrInvalidMode       = errors.New("invalid rewrite mode")
)
