package account

// Response is the envelope returned by the account endpoints.
type Response[T any] struct {
	Succeeded bool     `json:"succeeded"`
	Message   string   `json:"message,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Data      T        `json:"data"`
}

func Ok[T any](data T, message string) Response[T] {
	return Response[T]{Succeeded: true, Message: message, Data: data}
}

func Fail[T any](message string, errs ...string) Response[T] {
	return Response[T]{Message: message, Errors: errs}
}
