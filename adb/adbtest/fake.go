// Package adbtest provides a scripted Runner for tests.
package adbtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"androidmirror/adb"
)

// Response is what the fake returns for one command line
type Response struct {
	Stdout string
	Err    error
	Delay  time.Duration // honours ctx cancellation while waiting
}

// FakeRunner replies to invocations by their rendered command line
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []adb.Invocation
	inFlight  int
	maxFlight int
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]Response)}
}

// On registers the response for name + args
func (f *FakeRunner) On(name string, args []string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[adb.CommandLine(name, args)] = resp
	return f
}

func (f *FakeRunner) Run(ctx context.Context, inv adb.Invocation) (adb.Result, error) {
	key := adb.CommandLine(inv.Name, inv.Args)

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	resp, ok := f.responses[key]
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if !ok {
		return adb.Result{}, &adb.ExecError{
			Kind:    adb.ErrKindNotFound,
			Command: inv.Name,
			Args:    inv.Args,
			Cause:   fmt.Errorf("no scripted response for %q", key),
		}
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return adb.Result{}, &adb.ExecError{Kind: adb.ErrKindCanceled, Command: inv.Name, Args: inv.Args, Cause: ctx.Err()}
		}
	}

	if resp.Err != nil {
		return adb.Result{Stdout: []byte(resp.Stdout)}, resp.Err
	}
	return adb.Result{Stdout: []byte(resp.Stdout)}, nil
}

// Calls returns the invocations seen so far
func (f *FakeRunner) Calls() []adb.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]adb.Invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts invocations of name + args
func (f *FakeRunner) CallCount(name string, args []string) int {
	key := adb.CommandLine(name, args)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if adb.CommandLine(c.Name, c.Args) == key {
			n++
		}
	}
	return n
}

// MaxConcurrent is the highest number of overlapping Run calls observed
func (f *FakeRunner) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

// ExitError builds the error a failing command would produce
func ExitError(name string, args []string, code int, stderr string) error {
	return &adb.ExecError{Kind: adb.ErrKindExit, Command: name, Args: args, ExitCode: code, Stderr: stderr}
}
