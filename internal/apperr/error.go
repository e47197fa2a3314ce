// Package apperr holds the single error kind surfaced by the catalog core
// and the helpers that produce it.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// UnknownMessage is used when nothing readable can be extracted.
const UnknownMessage = "unknown error"

// Error is the only error shape returned across repository boundaries.
type Error struct {
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the original failure for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error without an underlying cause.
func New(message string) *Error {
	return &Error{Message: message}
}

// Normalize converts any failure value into an *Error. The message is taken,
// in order, from: a message field (an error's text or a message/Message
// field of a struct or map), a plain string, a JSON serialization of the
// value, and finally UnknownMessage. Normalize(nil) returns nil.
func Normalize(v any) *Error {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case *Error:
		return val
	case error:
		var existing *Error
		if errors.As(val, &existing) {
			return existing
		}
		if msg := val.Error(); msg != "" {
			return &Error{Message: msg, cause: val}
		}
		if msg, ok := messageField(val); ok {
			return &Error{Message: msg, cause: val}
		}
		return &Error{Message: UnknownMessage, cause: val}
	case string:
		if val == "" {
			return New(UnknownMessage)
		}
		return New(val)
	}

	if msg, ok := messageField(v); ok {
		return New(msg)
	}

	data, err := json.Marshal(v)
	if err != nil || len(data) == 0 || string(data) == "null" {
		return New(UnknownMessage)
	}
	return New(string(data))
}

// Message is shorthand for Normalize(v).Message; it returns "" for nil.
func Message(v any) string {
	if e := Normalize(v); e != nil {
		return e.Message
	}
	return ""
}

// messageField looks for a non-empty string message/Message field.
func messageField(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return "", false
		}
		for _, key := range []string{"message", "Message", "msg"} {
			mv := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				continue
			}
			if s, ok := mv.Interface().(string); ok && s != "" {
				return s, true
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() || !strings.EqualFold(field.Name, "message") {
				continue
			}
			if fv := rv.Field(i); fv.Kind() == reflect.String && fv.String() != "" {
				return fv.String(), true
			}
		}
	}
	return "", false
}

// IsTransport reports whether err is a network/transport failure, as opposed
// to an error reported by the backend itself.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var selection topology.ServerSelectionError
	if errors.As(err, &selection) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
