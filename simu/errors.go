package simu

import "github.com/juju/errors"

var (
	ErrAlreadyConnected = errors.New("simu already connected")
	ErrNotConnected     = errors.New("simu not connected")
	ErrRequestPending   = errors.New("simu request pending")
	// ErrNoResponse is passed to listener when pending exchange timed out.
	ErrNoResponse    = errors.New("simu no response")
	ErrConnectFailed = errors.New("simu connect failed")
	ErrNilListener   = errors.New("simu listener=nil")
)
