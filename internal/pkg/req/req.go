/*
Package req reads and validates HTTP request bodies.
*/
package req

import (
	"errors"
	"io"
	"net/http"

	"chatr/internal/pkg/errs"
)

// MaxEventBodySize bounds webhook event bodies. Events carry ids and display names only.
const MaxEventBodySize int64 = 64 << 10 // 64 KB

// ReadBody returns the raw request body, capped at MaxEventBodySize.
// Event bodies can be a JSON object, a JSON string or plain text, so no decoding happens here.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, *errs.CustomError) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxEventBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	return body, nil
}
