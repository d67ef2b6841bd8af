package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrMethodNotFound = errors.New("method not found")
	ErrInvalidParams  = errors.New("invalid params")
	ErrInternal       = errors.New("internal error")
)

// rpcMethod holds reflection data for a registered RPC method.
type rpcMethod struct {
	receiver   reflect.Value
	method     reflect.Method
	paramType  reflect.Type
	paramNames []string            // JSON tag names that must be present in args
	fieldNames map[string]struct{} // every JSON name a param field binds to
	methodName string
}

func (m *rpcMethod) call(ctx context.Context, args map[string]any, log logrus.FieldLogger) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("rpc_method", m.methodName).Errorf("jsonrpc panic: %v", r)
			result, err = nil, ErrInternal
		}
	}()

	for _, name := range m.paramNames {
		if _, ok := args[name]; !ok {
			return nil, errors.New("missing param: " + name)
		}
	}

	// Named args map onto struct fields by exact json name; encoding/json
	// alone would also bind case variants.
	bound := make(map[string]any, len(m.fieldNames))
	for name, v := range args {
		if _, ok := m.fieldNames[name]; ok {
			bound[name] = v
		}
	}
	param := reflect.New(m.paramType)
	raw, err := json.Marshal(bound)
	if err != nil {
		return nil, ErrInvalidParams
	}
	if err := json.Unmarshal(raw, param.Interface()); err != nil {
		return nil, ErrInvalidParams
	}

	results := m.method.Func.Call([]reflect.Value{m.receiver, reflect.ValueOf(ctx), param.Elem()})

	retResult := results[0].Interface()
	if !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return retResult, nil
}

// Registry is a Handler that routes calls to methods registered from Go
// values by reflection.
type Registry struct {
	// Logger receives method panics. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	mu      sync.RWMutex
	methods map[string]*rpcMethod
}

// NewRegistry creates an empty method registry.
func NewRegistry() *Registry {
	return &Registry{
		methods: make(map[string]*rpcMethod),
	}
}

// Register adds methods from a receiver to the registry.
// The namespace prefixes all method names (e.g., "math" + "Add" -> "math.Add").
// Use empty string for no namespace (method names used directly).
// Only exported methods with valid signatures are registered; a name that is
// already registered panics.
func (e *Registry) Register(namespace string, receiver any) {
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	for i := 0; i < val.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}

		handler, methodName := parseMethod(val, method)
		if handler == nil {
			continue
		}

		name := methodName
		if namespace != "" {
			name = namespace + "." + methodName
		}

		e.mu.Lock()
		if _, exists := e.methods[name]; exists {
			e.mu.Unlock()
			panic("jsonrpc: method name collision: " + name)
		}
		e.methods[name] = handler
		e.mu.Unlock()
	}
}

// Methods returns the registered method names in no particular order.
func (e *Registry) Methods() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.methods))
	for name := range e.methods {
		names = append(names, name)
	}
	return names
}

// ServeRPC implements Handler. Failures are reported through resp.SetError;
// the HTTP status is unaffected.
func (e *Registry) ServeRPC(ctx context.Context, req *Request, resp *Response) {
	e.mu.RLock()
	method, ok := e.methods[req.Method()]
	e.mu.RUnlock()

	if !ok {
		resp.SetError(ErrMethodNotFound.Error() + ": " + req.Method())
		return
	}

	log := e.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	result, err := method.call(ctx, req.args, log)
	if err != nil {
		resp.SetError(err.Error())
		return
	}
	resp.SetResult(result)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// parseMethod extracts method signature information via reflection.
// Valid signature: func(ctx context.Context, params Struct) (result, error)
// Returns nil for invalid signatures.
func parseMethod(receiver reflect.Value, method reflect.Method) (*rpcMethod, string) {
	ft := method.Func.Type()

	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return nil, ""
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, ""
	}

	paramType := ft.In(2)
	if paramType.Kind() != reflect.Struct {
		return nil, ""
	}

	rpc := &rpcMethod{
		receiver:   receiver,
		method:     method,
		paramType:  paramType,
		methodName: method.Name,
		fieldNames: make(map[string]struct{}),
	}

	paramNames := make([]string, 0)
	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.Name == "_" {
			if tag := field.Tag.Get("jsonrpc"); tag != "" {
				rpc.methodName = tag
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		rpc.fieldNames[name] = struct{}{}
		if !strings.Contains(opts, "omitempty") {
			paramNames = append(paramNames, name)
		}
	}
	rpc.paramNames = paramNames

	return rpc, rpc.methodName
}
