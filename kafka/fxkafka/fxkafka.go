// Package fxkafka registers provisioned Kafka connections with a go.uber.org/fx
// application.
//
// Both modules provide *kafka.Bundle together with the role handles, once
// unnamed and once under the role name:
//
//	type Params struct {
//		fx.In
//
//		Producer *kafka.Producer `name:"producer"`
//	}
//
// Handles of roles that were not requested are nil. The bundle is closed when
// the application stops. With Global=false every provide is private to the
// module.
//
// A resolver whose parameters are missing from the container never runs: fx
// rejects the graph with its own missing-type error before any constructor
// is called, so no role is built. Only failures of the resolver itself are
// reported as *kafka.ResolutionError.
package fxkafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/fx"

	"github.com/ppiankov/kafkaprovision/kafka"
)

const moduleName = "kafkaprovision"

// descriptorTag names the resolved descriptor inside an async module.
const descriptorTag = `name:"kafkaprovision-descriptor"`

var (
	descriptorType = reflect.TypeOf(kafka.ConnectionDescriptor{})
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// Module provisions desc while the application is built.
func Module(desc kafka.ConnectionDescriptor, opts ...kafka.Option) fx.Option {
	global := desc.IsGlobal()
	return fx.Module(moduleName,
		provide(global, func(lc fx.Lifecycle) (*kafka.Bundle, error) {
			bundle, err := kafka.NewProvisioner(opts...).Provision(context.Background(), desc)
			return register(lc, bundle, err)
		}),
		provide(global, accessors()...),
	)
}

type resolvedDescriptor struct {
	fx.In

	Desc kafka.ConnectionDescriptor `name:"kafkaprovision-descriptor"`
}

// ModuleAsync provisions the descriptor returned by resolver. resolver is an
// fx constructor: its parameters are resolved from the container and it
// returns (kafka.ConnectionDescriptor, error) or kafka.ConnectionDescriptor.
// Its failure is reported as a *kafka.ResolutionError and no role is built.
// A nil global means true.
func ModuleAsync(resolver any, global *bool, opts ...kafka.Option) fx.Option {
	ctor, err := wrapResolver(resolver)
	if err != nil {
		return fx.Error(err)
	}

	isGlobal := global == nil || *global
	return fx.Module(moduleName,
		fx.Provide(fx.Annotate(ctor, fx.ResultTags(descriptorTag)), fx.Private),
		provide(isGlobal, func(lc fx.Lifecycle, in resolvedDescriptor) (*kafka.Bundle, error) {
			bundle, err := kafka.NewProvisioner(opts...).Provision(context.Background(), in.Desc)
			return register(lc, bundle, err)
		}),
		provide(isGlobal, accessors()...),
	)
}

func register(lc fx.Lifecycle, bundle *kafka.Bundle, err error) (*kafka.Bundle, error) {
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(bundle.Close))
	return bundle, nil
}

func provide(global bool, ctors ...any) fx.Option {
	if !global {
		ctors = append(ctors, fx.Private)
	}
	return fx.Provide(ctors...)
}

func accessors() []any {
	admin := func(b *kafka.Bundle) *kafka.AdminClient {
		h, _ := b.AdminClient()
		return h
	}
	consumer := func(b *kafka.Bundle) *kafka.Consumer {
		h, _ := b.Consumer()
		return h
	}
	producer := func(b *kafka.Bundle) *kafka.Producer {
		h, _ := b.Producer()
		return h
	}

	return []any{
		admin,
		consumer,
		producer,
		fx.Annotate(admin, fx.ResultTags(roleTag(kafka.RoleAdmin))),
		fx.Annotate(consumer, fx.ResultTags(roleTag(kafka.RoleConsumer))),
		fx.Annotate(producer, fx.ResultTags(roleTag(kafka.RoleProducer))),
	}
}

func roleTag(role kafka.Role) string {
	return fmt.Sprintf("name:%q", string(role))
}

// wrapResolver returns a constructor with the parameters of resolver that
// reports resolver failures as *kafka.ResolutionError.
func wrapResolver(resolver any) (any, error) {
	if resolver == nil {
		return nil, &kafka.ResolutionError{Err: kafka.ErrNilResolver}
	}

	fn := reflect.ValueOf(resolver)
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("fxkafka: resolver must be a function, got %T", resolver)
	}

	switch {
	case ft.NumOut() == 1 && ft.Out(0) == descriptorType:
	case ft.NumOut() == 2 && ft.Out(0) == descriptorType && ft.Out(1) == errorType:
	default:
		return nil, errors.New("fxkafka: resolver must return (kafka.ConnectionDescriptor, error)")
	}

	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	out := []reflect.Type{descriptorType, errorType}

	wrapped := reflect.MakeFunc(reflect.FuncOf(in, out, ft.IsVariadic()), func(args []reflect.Value) []reflect.Value {
		var results []reflect.Value
		if ft.IsVariadic() {
			results = fn.CallSlice(args)
		} else {
			results = fn.Call(args)
		}

		if len(results) == 2 && !results[1].IsNil() {
			err := error(&kafka.ResolutionError{Err: results[1].Interface().(error)})
			return []reflect.Value{reflect.Zero(descriptorType), reflect.ValueOf(&err).Elem()}
		}
		return []reflect.Value{results[0], reflect.Zero(errorType)}
	})
	return wrapped.Interface(), nil
}
