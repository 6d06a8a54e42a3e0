// Package errors provides a standard error definition for use in the
// expression flow packages. Each error is assigned a class of error
// (kind) and an operation with optional arguments. Errors raised while
// compiling a graph additionally carry the location in the graph that
// caused them: the node id, the socket index, and the expected and found
// value types, so that a host can point a user at the offending node.
//
// Errors may be chained, and thus can be used to annotate upstream
// errors.
//
// Package errors provides functions Errorf and New as convenience
// constructors, so that users need import only one error package.
//
// The API was inspired by package upspin.io/errors.
package errors

import (
	"bytes"
	goerrors "errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/aws/thinkbox-magma-sub002/log"
	"github.com/grailbio/base/digest"
)

// Separator is inserted between chained errors while rendering.
// The default value (":\n\t") is inteded for interactive tools. A
// server can set this to a different value to be more log friendly.
var Separator = ":\n\t"

// Kind denotes the type of the error. The error's kind is used to
// render the error message and also for interpretation.
type Kind int

const (
	// Other denotes an unknown error.
	Other Kind = iota
	// NotExist denotes a reference to a nonexistant node, node type,
	// property, or collaborator.
	NotExist
	// Invalid indicates an invalid state, argument, or edit.
	Invalid
	// NotSupported indicates the operation was not supported.
	NotSupported
	// TypeMismatch indicates that a value's type did not match the
	// type expected by its consumer.
	TypeMismatch
	// Unconnected indicates that a required input socket was neither
	// connected nor given a default value.
	Unconnected
	// Cycle indicates that an edit would introduce a cycle.
	Cycle
	// Fatal denotes an unrecoverable error. These indicate a bug in
	// node type registration or in the compiler itself, and should
	// not be retried.
	Fatal

	maxKind
)

// String renders a human-readable description of kind k.
func (k Kind) String() string {
	switch k {
	default:
		return "unknown error"
	case NotExist:
		return "does not exist"
	case Invalid:
		return "invalid"
	case NotSupported:
		return "operation not supported"
	case TypeMismatch:
		return "type mismatch"
	case Unconnected:
		return "unconnected input socket"
	case Cycle:
		return "graph cycle detected"
	case Fatal:
		return "internal error"
	}
}

var kind2string = [maxKind]string{
	Other:        "Other",
	NotExist:     "NotExist",
	Invalid:      "Invalid",
	NotSupported: "NotSupported",
	TypeMismatch: "TypeMismatch",
	Unconnected:  "Unconnected",
	Cycle:        "Cycle",
	Fatal:        "Fatal",
}

// Name returns the identifier of kind k, as used in metric labels.
func (k Kind) Name() string {
	if k < 0 || k >= maxKind {
		return kind2string[Other]
	}
	return kind2string[k]
}

// NoIndex is the value of Error.Node, Error.Input, and Error.Output
// when the error does not refer to a node or socket.
const NoIndex = -1

// Node is an E argument naming the id of the offending node.
type Node int

// Input is an E argument naming the offending input socket.
type Input int

// Output is an E argument naming the offending output socket.
type Output int

// Property is an E argument naming the offending property.
type Property string

type expected struct{ fmt.Stringer }
type found struct{ fmt.Stringer }

// Expected is an E argument naming the type that was expected.
func Expected(t fmt.Stringer) interface{} { return expected{t} }

// Found is an E argument naming the type that was found.
func Found(t fmt.Stringer) interface{} { return found{t} }

// Error defines an expression flow error. It is used to indicate an
// error associated with an operation (and arguments), and may wrap
// another error.
//
// Errors should be constructed by errors.E.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Op is a one-word description of the operation that errored.
	Op string
	// Arg is an (optional) list of arguments to the operation.
	Arg []string
	// Node is the id of the node that caused the error, or NoIndex.
	Node int
	// Input is the index of the input socket that caused the error,
	// or NoIndex.
	Input int
	// Output is the index of the output socket that caused the
	// error, or NoIndex.
	Output int
	// Property is the name of the property that caused the error.
	Property string
	// Expected and Found are the names of the expected and actual
	// value types for type errors.
	Expected, Found string
	// Err is this error's underlying error: this error is caused
	// by Err.
	Err error
}

// E is used to construct errors. E constructs errors from a set of
// arguments; each of which must be one of the following types:
//
//	string
//		The first string argument is taken as the error's Op; subsequent
//		arguments are taken as the error's Arg.
//	digest.Digest
//		Taken as an Arg.
//	Kind
//		Taken as the error's Kind.
//	Node, Input, Output, Property
//		Taken as the error's graph location.
//	Expected(t), Found(t)
//		Taken as the error's expected and found types.
//	error
//		Taken as the error's underlying error.
//
// If a Kind is provided, there is no further processing. If not, and
// an underlying error is provided, E attempts to interpret it as
// follows: (1) If the underlying error is another *Error, and there
// is no Kind argument, the Kind is inherited from the *Error. (2) If
// the underyling error is an os.IsNotExist error, the error's kind is
// set to NotExist.
//
// Graph locations are not inherited from underlying errors; use
// Recover(err).Locate to find the innermost location.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := &Error{Node: NoIndex, Input: NoIndex, Output: NoIndex}
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			if e.Op == "" {
				e.Op = arg
			} else {
				e.Arg = append(e.Arg, arg)
			}
		case digest.Digest:
			e.Arg = append(e.Arg, arg.String())
		case Kind:
			e.Kind = arg
		case Node:
			e.Node = int(arg)
		case Input:
			e.Input = int(arg)
		case Output:
			e.Output = int(arg)
		case Property:
			e.Property = string(arg)
		case expected:
			e.Expected = arg.String()
		case found:
			e.Found = arg.String()
		case *Error:
			copy := *arg
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind {
			e.Kind = prev.Kind
			prev.Kind = Other
		} else if e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Op == "" && prev.Kind == Other && !prev.located() {
			e.Err = prev.Err
		}
	default:
		if e.Kind == Other && os.IsNotExist(e.Err) {
			e.Kind = NotExist
		}
	}
	return e
}

// Internal constructs a Fatal error for an invariant violation
// detected at the given node. The caller's location is recorded as
// the error's argument.
func Internal(node int, args ...interface{}) error {
	_, file, line, _ := runtime.Caller(1)
	args = append([]interface{}{"internal", Fatal, Node(node), file + ":" + strconv.Itoa(line)}, args...)
	return E(args...)
}

func (e *Error) located() bool {
	return e.Node != NoIndex || e.Input != NoIndex || e.Output != NoIndex ||
		e.Property != "" || e.Expected != "" || e.Found != ""
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Error renders this error and its chain of underlying errors,
// separated by Separator.
func (e *Error) Error() string {
	return e.ErrorSeparator(Separator)
}

// ErrorSeparator renders this errors and its chain of underlying
// errors, separated by sep.
func (e *Error) ErrorSeparator(sep string) string {
	if e == nil {
		return "<nil>"
	}
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(e.Op)
		for i := range e.Arg {
			b.WriteString(" " + e.Arg[i])
		}
	}
	if e.Node != NoIndex {
		pad(b, " ")
		fmt.Fprintf(b, "node %d", e.Node)
	}
	if e.Input != NoIndex {
		pad(b, " ")
		fmt.Fprintf(b, "input %d", e.Input)
	}
	if e.Output != NoIndex {
		pad(b, " ")
		fmt.Fprintf(b, "output %d", e.Output)
	}
	if e.Property != "" {
		pad(b, " ")
		fmt.Fprintf(b, "property %q", e.Property)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Expected != "" || e.Found != "" {
		pad(b, " ")
		fmt.Fprintf(b, "(expected %s, found %s)", orNone(e.Expected), orNone(e.Found))
	}
	if e.Err != nil {
		if err, ok := e.Err.(*Error); ok {
			pad(b, sep)
			b.WriteString(err.ErrorSeparator(sep))
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Unwrap returns the underlying error, for use with the standard
// library's errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Locate returns the innermost error in e's chain that carries a
// graph location, or e itself if none do.
func (e *Error) Locate() *Error {
	loc := e
	for cur := e; cur != nil; {
		if cur.located() {
			loc = cur
		}
		next, ok := cur.Err.(*Error)
		if !ok {
			break
		}
		cur = next
	}
	return loc
}

// Errorf is an alternate spelling of fmt.Errorf.
var Errorf = fmt.Errorf

// New is an alternate spelling of errors.New.
var New = goerrors.New

// Recover recovers any error into an *Error. If the passed-in Error
// is already an error, it is simply returned; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if err, ok := err.(*Error); ok {
		return err
	}
	return E(err).(*Error)
}

// Is tells whether err's kind is kind.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return Recover(err).Kind == kind
}

// Match compares err1 with err2. If err1 has type Kind, Match
// reports whether err2's Kind is the same, otherwise, Match checks
// that every nonempty field in err1 has the same value in err2. If
// err1 is an *Error with a non-nil Err field, Match recurs to check
// that the two errors chain of underlying errors also match.
func Match(err1 interface{}, err2 error) bool {
	e2 := Recover(err2)
	if e2 == nil {
		return false
	}
	switch e1 := err1.(type) {
	default:
		return false
	case Kind:
		return e1 == e2.Kind
	case *Error:
		if e1.Op != "" && e2.Op != e1.Op {
			return false
		}
		if len(e1.Arg) != len(e2.Arg) {
			return false
		}
		for i := range e1.Arg {
			if e1.Arg[i] != e2.Arg[i] {
				return false
			}
		}
		if e1.Kind != Other && e2.Kind != e1.Kind {
			return false
		}
		if e1.Node != NoIndex && e2.Node != e1.Node {
			return false
		}
		if e1.Input != NoIndex && e2.Input != e1.Input {
			return false
		}
		if e1.Output != NoIndex && e2.Output != e1.Output {
			return false
		}
		if e1.Property != "" && e2.Property != e1.Property {
			return false
		}
		if e1.Expected != "" && e2.Expected != e1.Expected {
			return false
		}
		if e1.Found != "" && e2.Found != e1.Found {
			return false
		}
		if e1.Err != nil {
			if _, ok := e1.Err.(*Error); ok {
				return Match(e1.Err, e2.Err)
			}
			if e2.Err == nil || e2.Err.Error() != e1.Err.Error() {
				return false
			}
		}
		return true
	}
}

// IsFatal tells whether error err is an internal error, which must not
// be retried.
func IsFatal(err error) bool {
	return Is(Fatal, err)
}
