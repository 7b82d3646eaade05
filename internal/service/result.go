package service

import "github.com/colorbook/colorbook-server/internal/errors"

// WriteResult is what create, update, and delete report to callers.
// Message is safe to show to users verbatim.
type WriteResult struct {
	Success bool        `json:"success"`
	ID      string      `json:"id,omitempty"`
	Code    errors.Code `json:"code,omitempty"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

// ResultFor builds the result of a write. Non-domain errors are reported
// with a generic message.
func ResultFor(id string, err error) WriteResult {
	if err == nil {
		return WriteResult{Success: true, ID: id, Message: "saved"}
	}

	res := WriteResult{
		Success: false,
		ID:      id,
		Code:    errors.CodeOf(err),
		Message: errors.MessageOf(err),
	}
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		res.Details = domainErr.Details
	}
	return res
}

// DeletedResult is the success result of a delete.
func DeletedResult(id string) WriteResult {
	return WriteResult{Success: true, ID: id, Message: "deleted"}
}
