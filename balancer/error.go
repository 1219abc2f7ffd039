package balancer

import (
	"errors"
	"net/http"
)

// Known errors.
var (
	ErrNotSupportedProto           = errors.New("not supported protocol")
	ErrTLSNotConfigured            = errors.New("https requires cert file and key file")
	ErrInvalidHashKey              = errors.New("invalid hash key")
	ErrVirtualServerNameEmpty      = errors.New("virtual server name is not specified")
	ErrVirtualServerAddressEmpty   = errors.New("virtual server address is not specified")
	ErrVirtualServerNameExisted    = errors.New("virtual server name existed")
	ErrVirtualServerAddressExisted = errors.New("virtual server address existed")
	ErrVirtualServerNotFound       = errors.New("virtual server not found")
	ErrVirtualServerRunning        = errors.New("virtual server is already running")
	ErrVirtualServerStopped        = errors.New("virtual server is already stopped")
)

type balancerError struct {
	StatusCode int
	ErrMsg     string
}

func (e *balancerError) Error() string {
	return e.ErrMsg
}

// Known balancerError.
var (
	ErrHostNotMatch     = &balancerError{http.StatusBadRequest, "Host Not Match"}
	ErrPeerNotFound     = &balancerError{http.StatusBadGateway, "Peer Not Found"}
	ErrPeerUnreachable  = &balancerError{http.StatusBadGateway, "Peer Unreachable"}
	ErrInternalBalancer = &balancerError{http.StatusInternalServerError, "Balancer Internal Error"}
)

// WriteError writes balancerError to http.ResponseWriter.
func WriteError(w http.ResponseWriter, err *balancerError) {
	w.WriteHeader(err.StatusCode)
	w.Write([]byte(err.ErrMsg))
}
