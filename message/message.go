// Package message defines the request/response records exchanged between client and server.
//
// RpcRequest and RpcResponse are the only record types that cross the wire. They get
// serialized by the codec layer and wrapped in a protocol frame for transmission over TCP.
package message

import "strings"

// RpcRequest carries one remote invocation from client to server.
type RpcRequest struct {
	RequestID      string   // Globally unique per call, minted by the proxy
	InterfaceName  string   // Fully qualified service interface identifier
	ServiceVersion string   // Version label, may be empty
	MethodName     string   // Operation name on the interface
	ParameterTypes []string // Declared type identifier of each argument, in order
	Parameters     []any    // Argument values, in order
}

// RpcResponse carries the outcome back to the client.
//
// At most one of Result / Exception is populated; a call that returns nothing and
// raises nothing yields a nil Result and a nil Exception.
type RpcResponse struct {
	RequestID string       // Echoes the request's id
	Result    any          // Return value, or nil
	Exception *RemoteError // Handler or dispatch error, or nil
}

// RemoteError is a handler-side error captured into a response and re-raised at the
// proxy, so callers observe remote exceptions as local errors.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ServiceKey renders an (interfaceName, version) pair as the single lookup token used
// by both handler dispatch and registry paths.
//
//	ServiceKey("HelloService", "")      == "HelloService"
//	ServiceKey("HelloService", " v1 ")  == "HelloService-v1"
func ServiceKey(interfaceName, serviceVersion string) string {
	v := strings.TrimSpace(serviceVersion)
	if v == "" {
		return interfaceName
	}
	return interfaceName + "-" + v
}
