// Package script evaluates small JavaScript functions supplied in
// configuration files: per file root value and file or selector predicates.
package script

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// ErrNotFunction is returned when script source does not evaluate to a function.
var ErrNotFunction = errors.New("script does not evaluate to a function")

// Func is a compiled JavaScript function of a single string argument.
// goja runtime is not goroutine safe so calls are serialized.
type Func struct {
	src string

	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// Compile evaluates src, which must be a function expression, for example
// "function (file) { return file.includes('mobile') ? 10 : 16 }" or
// "(file) => /vendor/.test(file)".
func Compile(src string) (*Func, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty script")
	}

	vm := goja.New()
	v, err := vm.RunString("(" + src + ")")
	if err != nil {
		return nil, fmt.Errorf("unable to compile script: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, ErrNotFunction
	}
	return &Func{src: src, vm: vm, fn: fn}, nil
}

// String returns script source.
func (f *Func) String() string {
	return f.src
}

func (f *Func) call(arg string) (goja.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, err := f.fn(goja.Undefined(), f.vm.ToValue(arg))
	if err != nil {
		return nil, fmt.Errorf("script call failed: %w", err)
	}
	return res, nil
}

// Number calls the function and converts result to a finite number.
func (f *Func) Number(arg string) (float64, error) {
	res, err := f.call(arg)
	if err != nil {
		return 0, err
	}
	if goja.IsUndefined(res) || goja.IsNull(res) {
		return 0, fmt.Errorf("script returned %s instead of number", res)
	}
	n := res.ToFloat()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("script returned non finite number: %s", res)
	}
	return n, nil
}

// Bool calls the function and converts result using JavaScript truthiness.
func (f *Func) Bool(arg string) (bool, error) {
	res, err := f.call(arg)
	if err != nil {
		return false, err
	}
	return res.ToBoolean(), nil
}
