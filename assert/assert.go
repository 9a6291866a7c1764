package assert

import "github.com/embervale/physics/perror"

// IsTrue panics when ok is false. It is reserved for programming-contract
// violations that indicate a caller bug, never for recoverable conditions.
func IsTrue(ok bool, message string, args ...interface{}) {
	if !ok {
		panic(perror.New(message, args...))
	}
}
