package services

import (
	"fmt"
	"sort"
	"strings"
)

const (
	MessageMissingRequiredFields = "Missing required fields"
	MessageInvalidFieldValues    = "Invalid field values"
)

// ValidationError reports a submission rejected before anything was stored.
// Fields maps wire field names to a short reason.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (err *ValidationError) Error() string {
	if len(err.Fields) == 0 {
		return err.Message
	}
	names := make([]string, 0, len(err.Fields))
	for name := range err.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", err.Message, strings.Join(names, ", "))
}

// StorageError wraps a failure of the file store or the record store.
type StorageError struct {
	Op  string
	Err error
}

func (err *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err *StorageError) Unwrap() error {
	return err.Err
}
