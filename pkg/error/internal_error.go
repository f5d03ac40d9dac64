package error

import "net/http"

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}

type ServiceUnavailableError string

func (err ServiceUnavailableError) Error() string {
	return string(err)
}

func (err ServiceUnavailableError) ErrCode() string {
	return "SERVICE_UNAVAILABLE"
}

func (err ServiceUnavailableError) StatusCode() int {
	return http.StatusServiceUnavailable
}
