package calc

import "errors"

var (
	ErrMissingInput        = errors.New("missing image or dict_of_vars")
	ErrInvalidImage        = errors.New("image is not valid base64")
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	ErrDegradedParse       = errors.New("model reply could not be parsed")
)
