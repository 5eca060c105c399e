package usecase

import "github.com/m-mizutani/goerr/v2"

var (
	ErrRecordNotFound        = goerr.New("record not found")
	ErrEmbeddingUnavailable  = goerr.New("embedding unavailable")
	ErrCapacityExceeded      = goerr.New("record capacity exceeded")
	ErrRevisionRetryExceeded = goerr.New("revision retry limit exceeded")
)
