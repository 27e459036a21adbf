package constant

import (
	"errors"
	"time"
)

const (
	WindowSize         = 128 * 1024
	ChannelSize        = 1000
	ConnectTimeout     = 10 * time.Second
	IdleTimeout        = 30 * time.Second
	ReferenceBackoff   = time.Second
	AlertAfterFailures = 5
)

var ErrEmptyUpdate = errors.New("got empty update from server")
