package dto

import "math"

// ===========================================================================
// Response envelopes
// Dashboard routes answer with Response; function and webhook routes answer
// with the flat {"error": "..."} body that provider callers and the internal
// function client expect
// ===========================================================================

// Response is the dashboard API envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError machine readable code plus message
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta pagination info for list endpoints
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// NewMeta builds pagination meta
func NewMeta(page, limit int, total int64) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

func Success(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func SuccessWithMeta(data interface{}, meta *Meta) Response {
	return Response{Success: true, Data: data, Meta: meta}
}

func Error(code, message string) Response {
	return Response{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	}
}

// FunctionErrorBody is the flat error body of function and webhook routes
type FunctionErrorBody struct {
	Error string `json:"error"`
}

// FunctionError builds {"error": message}
func FunctionError(message string) FunctionErrorBody {
	return FunctionErrorBody{Error: message}
}

// WebhookAck is what providers receive once an event was accepted
var WebhookAck = map[string]string{"status": "ok"}
