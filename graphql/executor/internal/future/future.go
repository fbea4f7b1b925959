package future

import (
	"reflect"
)

// Result holds either a value of type T or an error.
type Result[T any] struct {
	Value T
	Error error
}

// IsOk returns true if the result is not an error.
func (r Result[T]) IsOk() bool {
	return r.Error == nil || reflect.ValueOf(r.Error).IsNil()
}

// IsErr returns true if the result is an error.
func (r Result[T]) IsErr() bool {
	return !r.IsOk()
}

// Future represents a result that will be available at some point in the future. It is very similar
// to Rust's Future trait.
type Future[T any] struct {
	result Result[T]
	poll   func() (Result[T], bool)
}

// New constructs a new future from a poll function. When the future's value is ready, poll should
// return the value and true. Otherwise, poll should return a zero value and false.
func New[T any](poll func() (Result[T], bool)) Future[T] {
	return Future[T]{
		poll: poll,
	}
}

// IsReady returns true if the future's value is ready.
func (f Future[T]) IsReady() bool {
	return f.poll == nil
}

// Result returns the future's result if it is ready.
func (f Future[T]) Result() Result[T] {
	return f.result
}

// Poll invokes pollers for the future and its dependencies, allowing futures to transition to
// the ready state.
func (f *Future[T]) Poll() {
	if f.poll != nil {
		var ok bool
		if f.result, ok = f.poll(); ok {
			f.poll = nil
		}
	}
}

// Ok returns a new future that is immediately ready with the given value.
func Ok[T any](v T) Future[T] {
	return Future[T]{
		result: Result[T]{
			Value: v,
		},
	}
}

// Err returns a new future that is immediately ready with the given error.
func Err[T any](err error) Future[T] {
	return Future[T]{
		result: Result[T]{
			Error: err,
		},
	}
}

// Map converts a future's result using a conversion function, without changing its type parameter.
func Map[T any](f Future[T], fn func(Result[T]) Result[T]) Future[T] {
	if f.IsReady() {
		f.result = fn(f.result)
		return f
	}
	fpoll := f.poll
	f.poll = func() (Result[T], bool) {
		r, ok := fpoll()
		if ok {
			return fn(r), true
		}
		return r, false
	}
	return f
}

// MapOk converts a future's value to a different type using a conversion function. The conversion
// function is only invoked if the future resolves successfully; otherwise the error is carried
// through unchanged.
func MapOk[T, U any](f Future[T], fn func(T) U) Future[U] {
	if f.IsReady() {
		r := f.Result()
		var u Result[U]
		if r.IsOk() {
			u.Value = fn(r.Value)
		} else {
			u.Error = r.Error
		}
		return Future[U]{result: u}
	}
	fpoll := f.poll
	return Future[U]{
		poll: func() (Result[U], bool) {
			r, ok := fpoll()
			if !ok {
				var zero Result[U]
				return zero, false
			}
			var u Result[U]
			if r.IsOk() {
				u.Value = fn(r.Value)
			} else {
				u.Error = r.Error
			}
			return u, true
		},
	}
}

// Then invokes fn when f is resolved and returns a future that resolves when fn's return value is
// resolved.
func Then[T, U any](f Future[T], fn func(Result[T]) Future[U]) Future[U] {
	if f.IsReady() {
		return fn(f.Result())
	}
	fpoll := f.poll
	var then Future[U]
	var hasThen bool
	return Future[U]{
		poll: func() (Result[U], bool) {
			if !hasThen {
				if r, ok := fpoll(); ok {
					then = fn(r)
					hasThen = true
				}
			}
			if hasThen {
				then.Poll()
				return then.result, then.IsReady()
			}
			var zero Result[U]
			return zero, false
		},
	}
}

// Join combines the values from multiple futures into a single future that resolves to
// []interface{}. If any future errors, the returned future immediately resolves to an error.
func Join(fs ...Future[any]) Future[[]interface{}] {
	results := make([]interface{}, len(fs))

	ok := true

	for i, f := range fs {
		if f.IsReady() {
			if !f.Result().IsOk() {
				return Err[[]interface{}](f.Result().Error)
			}
			results[i] = f.Result().Value
		} else {
			ok = false
		}
	}

	if ok {
		return Ok(results)
	}

	return New(func() (Result[[]interface{}], bool) {
		ok := true

		for i := range fs {
			f := &fs[i]
			f.Poll()
			if f.IsReady() {
				if !f.Result().IsOk() {
					return Result[[]interface{}]{Error: f.Result().Error}, true
				}
				results[i] = f.Result().Value
			} else {
				ok = false
			}
		}

		if ok {
			return Result[[]interface{}]{Value: results}, true
		}

		return Result[[]interface{}]{}, false
	})
}

// After returns a single future that resolves after all of the given futures. If any future errors,
// the returned future immediately resolves to an error. This is very similar to Join except that
// the resolved value carries no information (making it more efficient if you don't need the values
// of the joined futures).
func After(fs ...Future[any]) Future[struct{}] {
	ok := true

	for _, f := range fs {
		if f.IsReady() {
			if !f.Result().IsOk() {
				return Err[struct{}](f.Result().Error)
			}
		} else {
			ok = false
		}
	}

	if ok {
		return Ok(struct{}{})
	}

	return New(func() (Result[struct{}], bool) {
		ok := true

		for i := range fs {
			f := &fs[i]
			f.Poll()
			if f.IsReady() {
				if !f.Result().IsOk() {
					return Result[struct{}]{Error: f.Result().Error}, true
				}
			} else {
				ok = false
			}
		}

		if ok {
			return Result[struct{}]{}, true
		}

		return Result[struct{}]{}, false
	})
}
