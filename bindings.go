package mariadb

import (
	"reflect"

	"github.com/litebase/mariadb-go/codec"
)

// Bindings holds the parameter values of one statement: the set being bound
// and the sets already added for batch execution.
type Bindings struct {
	batch     [][]Parameter
	current   []Parameter
	dirty     bool
	numParams int
	registry  *codec.Registry
}

// NewBindings sizes a binding set for numParams placeholders. A nil registry
// uses codec.Default.
func NewBindings(numParams int, registry *codec.Registry) *Bindings {
	if registry == nil {
		registry = codec.Default
	}

	return &Bindings{
		current:   make([]Parameter, numParams),
		numParams: numParams,
		registry:  registry,
	}
}

func (b *Bindings) NumParams() int {
	return b.numParams
}

// Bind sets the value at a zero-based index. A nil value binds NULL.
func (b *Bindings) Bind(index int, value any) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}

	param, err := NewParameter(b.registry, value)

	if err != nil {
		return err
	}

	b.current[index] = param
	b.dirty = true

	return nil
}

// BindNull sets SQL NULL at index. hint names the intended host type and is
// currently not sent to the server.
func (b *Bindings) BindNull(index int, hint reflect.Type) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}

	b.current[index] = NullParameter
	b.dirty = true

	return nil
}

// BindName always fails: placeholders are positional.
func (b *Bindings) BindName(name string, value any) error {
	return ErrNamedParameterUnsupported
}

// Add stores the current set for batch execution and starts an empty one.
func (b *Bindings) Add() error {
	if err := b.validate(); err != nil {
		return err
	}

	b.batch = append(b.batch, b.current)
	b.current = make([]Parameter, b.numParams)
	b.dirty = false

	return nil
}

// Len is the number of sets added for batch execution.
func (b *Bindings) Len() int {
	return len(b.batch)
}

func (b *Bindings) checkIndex(index int) error {
	if index < 0 || index >= b.numParams {
		return &IndexOutOfRangeError{Index: index, Count: b.numParams}
	}

	return nil
}

func (b *Bindings) validate() error {
	for i, param := range b.current {
		if !param.isSet() {
			return &MissingParameterError{Index: i}
		}
	}

	return nil
}

// single validates and returns the current set.
func (b *Bindings) single() ([]Parameter, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	return b.current, nil
}

// sets returns every added set, adding the current one first when values
// were bound to it since the last Add.
func (b *Bindings) sets() ([][]Parameter, error) {
	if b.dirty || len(b.batch) == 0 {
		if err := b.Add(); err != nil {
			return nil, err
		}
	}

	sets := b.batch
	b.batch = nil

	return sets, nil
}

// Clear drops the current set and every added set.
func (b *Bindings) Clear() {
	b.batch = nil
	b.current = make([]Parameter, b.numParams)
	b.dirty = false
}
