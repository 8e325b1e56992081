package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrTaskNotFound = errors.New("research task not found")
)

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
	ErrEmptyTaskID  = errors.New("empty task id")
	ErrEmptyOwner   = errors.New("empty owner")
)
