package models

// Identity is what request handlers know about the caller, whichever transport authenticated it.
type Identity interface {
	IsAuthenticated() bool
	GetID() uint
}

// Anonymous is the Identity of a request with no valid session or token.
var Anonymous Identity = anonymous{}

type anonymous struct{}

func (anonymous) IsAuthenticated() bool { return false }
func (anonymous) GetID() uint           { return 0 }
