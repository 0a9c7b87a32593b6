// Package jsworker hosts a single JavaScript runtime on a dedicated OS
// thread, used to evaluate platform signing scripts (Douyu's ub98484234,
// Douyin's webcast get_sign) that are infeasible to reimplement natively.
// One Worker owns one goja.Runtime; two independent Workers are created at
// the composition root, one per platform, matching the "two instances:
// Douyu, Douyin" requirement.
package jsworker

import (
	"fmt"
	"runtime"

	"github.com/dop251/goja"
)

type job struct {
	expr   string
	result chan<- evalResult
}

type evalResult struct {
	value string
	err   error
}

// Worker is a channel-fed, single-OS-thread JS evaluator.
type Worker struct {
	jobs   chan job
	bootCh chan error
}

// New spawns the worker's owning goroutine, installs a minimal browser
// shim, and preloads each (name, source) script in order. The first
// preload failure poisons the worker: every subsequent Eval call returns
// that same recorded error, matching spec §4.2's "Failure" clause.
func New(userAgent string, preload []Script) *Worker {
	w := &Worker{
		jobs:   make(chan job, 64),
		bootCh: make(chan error, 1),
	}
	go w.run(userAgent, preload)
	return w
}

// Script is a named source file preloaded into the runtime at startup.
type Script struct {
	Name   string
	Source string
}

func (w *Worker) run(userAgent string, preload []Script) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	vm := goja.New()
	bootErr := bootstrap(vm, userAgent)
	if bootErr == nil {
		for _, s := range preload {
			if _, err := vm.RunScript(s.Name, s.Source); err != nil {
				bootErr = fmt.Errorf("preload %s: %w", s.Name, err)
				break
			}
		}
	}
	w.bootCh <- bootErr

	for j := range w.jobs {
		if bootErr != nil {
			j.result <- evalResult{err: bootErr}
			continue
		}
		v, err := vm.RunString(j.expr)
		if err != nil {
			j.result <- evalResult{err: err}
			continue
		}
		j.result <- evalResult{value: v.String()}
	}
}

// bootstrap installs the minimal browser environment the signing scripts
// expect: window===globalThis, an empty document stub, and navigator.userAgent.
func bootstrap(vm *goja.Runtime, userAgent string) error {
	global := vm.GlobalObject()
	if err := vm.Set("window", global); err != nil {
		return err
	}
	if err := vm.Set("self", global); err != nil {
		return err
	}
	if err := vm.Set("document", vm.NewObject()); err != nil {
		return err
	}
	navigator := vm.NewObject()
	if err := navigator.Set("userAgent", userAgent); err != nil {
		return err
	}
	return vm.Set("navigator", navigator)
}

// EvalString evaluates expr on the worker's owning thread and returns the
// result's string value, or an error if the worker is poisoned or
// evaluation failed.
func (w *Worker) EvalString(expr string) (string, error) {
	resultCh := make(chan evalResult, 1)
	w.jobs <- job{expr: expr, result: resultCh}
	r := <-resultCh
	return r.value, r.err
}

// WaitReady blocks until the initial bootstrap+preload pass has completed,
// returning its error (nil on success). May be called any number of times;
// every call returns the same result.
func (w *Worker) WaitReady() error {
	err := <-w.bootCh
	w.bootCh <- err // allow repeated WaitReady calls
	return err
}
