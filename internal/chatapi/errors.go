package chatapi

import "errors"

var (
	errMissingModel  = errors.New("chatapi: model is required")
	errEmptyMessages = errors.New("chatapi: messages must not be empty")
)
