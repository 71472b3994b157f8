// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// This file provides a registry for Interpreter implementations.
//
// For an implementation to be available it needs to be registered,
// typically as part of the init code of the package providing it. Thus,
// by importing the implementation package, interpreter implementations
// become available in this central registry.

// InterpreterFactory creates an Interpreter from an implementation
// specific configuration. A nil configuration selects the implementation
// default.
type InterpreterFactory func(config any) (Interpreter, error)

// NewInterpreter performs a lookup for the given name (case-insensitive)
// in the registry and creates a new Interpreter using the given optional
// configuration. An error is returned if no factory was registered under
// the given name.
func NewInterpreter(name string, config ...any) (Interpreter, error) {
	if len(config) > 1 {
		return nil, fmt.Errorf("invalid configuration: too many arguments")
	}
	factory := GetInterpreterFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("interpreter not found: %s", name)
	}
	c := any(nil)
	if len(config) > 0 {
		c = config[0]
	}
	return factory(c)
}

// GetInterpreterFactory performs a lookup for the given name
// (case-insensitive) in the registry. The result is nil if no factory was
// registered under the given name.
func GetInterpreterFactory(name string) InterpreterFactory {
	interpreterRegistryLock.Lock()
	defer interpreterRegistryLock.Unlock()
	return interpreterRegistry[strings.ToLower(name)]
}

// GetAllRegisteredInterpreters obtains a snapshot of all registered
// implementations.
func GetAllRegisteredInterpreters() map[string]InterpreterFactory {
	interpreterRegistryLock.Lock()
	defer interpreterRegistryLock.Unlock()
	return maps.Clone(interpreterRegistry)
}

// RegisterInterpreterFactory binds a factory to a name. The name is not
// case-sensitive. An error is reported if a factory was already bound to
// the name or the factory is nil. This function is mainly intended to be
// used by package initialization code.
func RegisterInterpreterFactory(name string, factory InterpreterFactory) error {
	if factory == nil {
		return fmt.Errorf("invalid initialization: nil factory for %s", name)
	}
	key := strings.ToLower(name)
	interpreterRegistryLock.Lock()
	defer interpreterRegistryLock.Unlock()
	if _, found := interpreterRegistry[key]; found {
		return fmt.Errorf("interpreter already registered: %s", key)
	}
	interpreterRegistry[key] = factory
	return nil
}

var (
	interpreterRegistry     = map[string]InterpreterFactory{}
	interpreterRegistryLock sync.Mutex
)
