package service

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room has reached maximum capacity")
	ErrNotMember            = errors.New("user is not a member of this room")
	ErrUserNotFound         = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrInternalServer       = errors.New("internal server error")
)
