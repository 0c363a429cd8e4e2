package engine

import "net/http"

// Operation is one of the four CRUD kinds a request resolves to.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// methodOps is the fixed bijection between HTTP methods and operations.
// Any other method against a collection route is rejected.
var methodOps = map[string]Operation{
	http.MethodGet:    OperationRead,
	http.MethodPost:   OperationCreate,
	http.MethodPut:    OperationUpdate,
	http.MethodDelete: OperationDelete,
}

// OperationForMethod resolves an HTTP method to its operation.
func OperationForMethod(method string) (Operation, bool) {
	op, ok := methodOps[method]
	return op, ok
}

// MethodForOperation resolves an operation back to its HTTP method.
func MethodForOperation(op Operation) (string, bool) {
	for method, o := range methodOps {
		if o == op {
			return method, true
		}
	}
	return "", false
}

// IsWrite reports whether the operation mutates state.
func (op Operation) IsWrite() bool {
	return op == OperationCreate || op == OperationUpdate || op == OperationDelete
}
