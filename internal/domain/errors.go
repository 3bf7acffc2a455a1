package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session has closed")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrVoteNotFound    = errors.New("no vote recorded for user")
	ErrNotOwner        = errors.New("caller is not the session owner")
)
