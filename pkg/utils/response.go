package utils

// ResponseData is the envelope of every REST response.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded hands the error to the recovery middleware.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
