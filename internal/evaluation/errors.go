package evaluation

import "errors"

// ErrInvalidInput is returned when criteria, scores or ratings cannot produce a percentage
var ErrInvalidInput = errors.New("invalid evaluation input")
