package server

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mayingwei/myrpc/codec"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// methodType is the precomputed invoker for one exported method: the reflect handle
// plus everything needed to build the call without per-request type inspection.
type methodType struct {
	method reflect.Method
	in     []reflect.Type // parameter types, receiver and context excluded
	hasCtx bool           // first parameter is context.Context
	hasRes bool           // first return value is the result
	hasErr bool           // last return value is error
}

// service is one registered handler: the receiver plus its method index, scanned once
// at registration so dispatch never does a reflective method lookup.
type service struct {
	key    string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

func newService(key string, rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: handler for %s must be a pointer to struct", key)
	}
	svc := &service{
		key:    key,
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("rpc: handler for %s exposes no callable methods", key)
	}
	return svc, nil
}

// registerMethods indexes every exported method with a usable signature:
// an optional leading context.Context, any serializable parameters, and up to two
// return values where an error (if any) comes last.
func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		mt := method.Type

		m := &methodType{method: method}
		argStart := 1 // skip receiver
		if mt.NumIn() > 1 && mt.In(1) == contextType {
			m.hasCtx = true
			argStart = 2
		}
		for j := argStart; j < mt.NumIn(); j++ {
			m.in = append(m.in, mt.In(j))
		}

		switch mt.NumOut() {
		case 0:
		case 1:
			if mt.Out(0) == errorType {
				m.hasErr = true
			} else {
				m.hasRes = true
			}
		case 2:
			if mt.Out(1) != errorType {
				continue
			}
			m.hasRes = true
			m.hasErr = true
		default:
			continue
		}

		s.method[method.Name] = m
	}
}

// call invokes methodName with the decoded parameters. Handler panics are recovered
// into errors so a misbehaving handler never takes down the connection goroutine.
func (s *service) call(ctx context.Context, methodName string, params []any) (result any, err error) {
	m, ok := s.method[methodName]
	if !ok {
		return nil, fmt.Errorf("no such method: %s.%s", s.key, methodName)
	}
	if len(params) != len(m.in) {
		return nil, fmt.Errorf("%s.%s wants %d parameters, got %d", s.key, methodName, len(m.in), len(params))
	}

	args := make([]reflect.Value, 0, len(params)+2)
	args = append(args, s.rcvr)
	if m.hasCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, p := range params {
		av := reflect.New(m.in[i]).Elem()
		if err := codec.Assign(av, p); err != nil {
			return nil, fmt.Errorf("%s.%s parameter %d: %w", s.key, methodName, i, err)
		}
		args = append(args, av)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	results := m.method.Func.Call(args)
	if m.hasErr {
		if ev := results[len(results)-1]; !ev.IsNil() {
			return nil, ev.Interface().(error)
		}
	}
	if m.hasRes {
		return results[0].Interface(), nil
	}
	return nil, nil
}
