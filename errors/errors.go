package errors

import "fmt"

var (
	ErrUnauthorized   = fmt.Errorf("invalid or expired session token")
	ErrRoomNotLoaded  = fmt.Errorf("room is not active in memory")
	ErrNameTaken      = fmt.Errorf("player name is already registered")
	ErrBadCredentials = fmt.Errorf("invalid username or password")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
