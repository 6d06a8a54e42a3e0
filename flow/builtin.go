// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package flow

import (
	"github.com/aws/thinkbox-magma-sub002/errors"
	"github.com/aws/thinkbox-magma-sub002/types"
	"github.com/aws/thinkbox-magma-sub002/values"
)

// Names of the structural node types known to the graph and the
// compiler.
const (
	// TypeBLOP is a container with its own inputs and outputs.
	TypeBLOP = "BLOP"
	// TypeBLOPSocket is a BLOP's input placeholder. Its outputs
	// forward the BLOP's inputs.
	TypeBLOPSocket = "BLOPSocket"
	// TypeBLOPOutput is a BLOP's output placeholder. Its inputs
	// become the BLOP's outputs.
	TypeBLOPOutput = "BLOPOutput"
	// TypeLoop is a container that evaluates its body a bounded
	// number of times.
	TypeLoop = "Loop"
	// TypeLoopInput is a loop's input placeholder. Output 0 is the
	// iteration index; output 1+i forwards loop input i, or the
	// current value of the carried variable it initializes.
	TypeLoopInput = "Loop__Input"
	// TypeLoopOutput is a loop's output placeholder. Input 0 is the
	// continuation condition; input 1+k is the update of carried
	// variable k.
	TypeLoopOutput = "Loop__Output"
	// TypeOutput writes a value into a field of the element.
	TypeOutput = "Output"
	// TypeInputChannel reads a value from a field of the element.
	TypeInputChannel = "InputChannel"
)

// Property names used by the structural node types.
const (
	PropMaxIterations = "maxIterations"
	PropOutputMask    = "outputMask"
	PropChannelName   = "channelName"
	PropChannelType   = "channelType"
)

// DefaultMaxIterations is the default iteration bound of a loop.
const DefaultMaxIterations = 1000

func nonNegative(v interface{}) error {
	if v.(int) < 0 {
		return errors.E(errors.Invalid, errors.New("must be non-negative"))
	}
	return nil
}

func init() {
	Register(&Type{
		Name:        TypeBLOP,
		Category:    "System",
		Description: "A group of nodes with its own input and output sockets.",
		Container:   true,
	})
	Register(&Type{
		Name:     TypeBLOPSocket,
		Category: "System",
		Hidden:   true,
	})
	Register(&Type{
		Name:     TypeBLOPOutput,
		Category: "System",
		Hidden:   true,
	})
	Register(&Type{
		Name:        TypeLoop,
		Category:    "System",
		Description: "Repeats its body until the condition is false or the iteration bound is reached.",
		Container:   true,
		Properties: []PropertyDesc{
			{Name: PropMaxIterations, Default: DefaultMaxIterations, Validate: nonNegative},
			{Name: PropOutputMask, Default: []int{}},
		},
	})
	Register(&Type{
		Name:     TypeLoopInput,
		Category: "System",
		Hidden:   true,
	})
	Register(&Type{
		Name:     TypeLoopOutput,
		Category: "System",
		Hidden:   true,
	})
	Register(&Type{
		Name:        TypeOutput,
		Category:    "System",
		Description: "Writes a value into the specified channel for the current element.",
		TopLevel:    true,
		// Disabled outputs are skipped by the compiler.
		Disableable: true,
		Properties: []PropertyDesc{
			{Name: PropChannelName, Default: ""},
			{Name: PropChannelType, Default: types.T{}},
		},
		Inputs: []InputDesc{{Name: "Value", NoDefault: true}},
	})
	Register(&Type{
		Name:        TypeInputChannel,
		Category:    "Input",
		Description: "Reads a value from the specified channel for the current element.",
		Properties: []PropertyDesc{
			{Name: PropChannelName, Default: ""},
			{Name: PropChannelType, Default: types.T{}},
		},
		Outputs: []OutputDesc{{Name: "Value"}},
	})
}

// loopConditionDefault is the default of a loop's condition socket.
// An unconnected condition means the loop runs for its full
// iteration bound.
var loopConditionDefault = values.Bool(true)
