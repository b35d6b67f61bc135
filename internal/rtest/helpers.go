// Package rtest provides small assertion helpers in the style of the
// teacher's own internal/test package. internal/pack's tests use them; the
// other packages' tests call t.Fatal directly.
package rtest

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

// Assert fails the test with the given message if cond is false.
func Assert(tb testing.TB, cond bool, msg string, args ...interface{}) {
	tb.Helper()
	if !cond {
		_, file, line, _ := runtime.Caller(1)
		file = filepath.Base(file)
		tb.Fatalf("%s:%d: "+msg, append([]interface{}{file, line}, args...)...)
	}
}

// OK fails the test if err is not nil.
func OK(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		file = filepath.Base(file)
		tb.Fatalf("%s:%d: unexpected error: %v", file, line, err)
	}
}

// Equals fails the test if want and got are not deeply equal.
func Equals(tb testing.TB, want, got interface{}) {
	tb.Helper()
	if !reflect.DeepEqual(want, got) {
		_, file, line, _ := runtime.Caller(1)
		file = filepath.Base(file)
		tb.Fatalf("%s:%d: expected %s, got %s", file, line, fmtVal(want), fmtVal(got))
	}
}

func fmtVal(v interface{}) string {
	return fmt.Sprintf("%#v", v)
}
