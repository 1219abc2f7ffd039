package controller

import "net/http"

type controllerError struct {
	StatusCode int
	ErrMsg     string
}

func (e *controllerError) Error() string {
	return e.ErrMsg
}

// Known controllerError.
var (
	ErrUnauthorized    = &controllerError{http.StatusUnauthorized, "Unauthorized"}
	ErrUnknownAction   = &controllerError{http.StatusBadRequest, "Unknown action"}
	ErrKeyEmpty        = &controllerError{http.StatusBadRequest, "Key is not specified"}
	ErrInvalidCount    = &controllerError{http.StatusBadRequest, "Invalid peer count"}
	ErrAddressEmpty    = &controllerError{http.StatusBadRequest, "Peer address is not specified"}
	ErrPeerExisted     = &controllerError{http.StatusBadRequest, "Peer existed"}
	ErrPeerNotFound    = &controllerError{http.StatusBadRequest, "Peer not found"}
	ErrPeerUnchanged   = &controllerError{http.StatusBadRequest, "Peer not found or status unchanged"}
	ErrNoPeerAvailable = &controllerError{http.StatusServiceUnavailable, "No peer available"}
)

// WriteError writes the controllerError to http.ResponseWriter.
func WriteError(w http.ResponseWriter, err *controllerError) {
	w.WriteHeader(err.StatusCode)
	w.Write([]byte(err.ErrMsg))
}

// WriteBadRequest writes the error with 400 to http.ResponseWriter.
func WriteBadRequest(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(err.Error()))
}
