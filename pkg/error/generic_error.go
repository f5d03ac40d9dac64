package error

// GenericError is rendered by the REST recovery middleware with its own status and code.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
