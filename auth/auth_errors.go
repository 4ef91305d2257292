package auth

import "errors"

var ErrAlreadyStarted = errors.New("auth context already started")
