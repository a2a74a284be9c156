// Package fmtt holds development-time error formatting helpers.
package fmtt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// ErrChain renders each layer of an error chain with its concrete type,
// one layer per line. Useful when a wrapped boundary error hides which
// collaborator actually failed.
func ErrChain(err error) string {
	if err == nil {
		return "<nil>"
	}

	var b strings.Builder
	i := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "[%d] %T: %v\n", i, e, e)
		i++
	}
	return b.String()
}

// DumpErrChain prints the chain to stdout with a full spew dump of each
// layer's fields. Development diagnostics only.
func DumpErrChain(err error) {
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Printf("[%d] %T: %v\n", i, err, err)
		spew.Dump(err)
		i++
	}
}
