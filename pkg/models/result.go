package models

// Result is the serialized form of an operation outcome, used for --json CLI
// output and MCP responses.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResultOf converts a (value, error) pair into a Result.
func ResultOf[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{Error: err.Error()}
	}
	return Result[T]{Success: true, Data: data}
}
