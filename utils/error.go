package utils

import "errors"

// Error taxonomy shared by models, workflow and the HTTP layer.
// Handlers map these to status codes; anything else is a 500.
var (
	ErrorRecordNotFound   = errors.New("record not found")
	ErrorValidation       = errors.New("validation failed")
	ErrorNoBalance        = errors.New("no commission available to pay")
	ErrorSettlementFailed = errors.New("order settlement failed")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
