package tags

import "errors"

var (
	ErrNotFound     = errors.New("tags: tag not found")
	ErrTypeMismatch = errors.New("tags: type mismatch")
)
