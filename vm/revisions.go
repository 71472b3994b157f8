// Copyright (c) 2024 The bbvm authors
// SPDX-License-Identifier: Apache-2.0

package vm

import "fmt"

// Revision is an enumeration of the supported protocol revisions
// (aka. hard forks). Revisions are totally ordered.
type Revision int

const (
	R07_Istanbul Revision = iota
	R09_Berlin
	R10_London
	R11_Paris
	R12_Shanghai
	R13_Cancun
	NumRevisions int = iota
)

func (r Revision) String() string {
	switch r {
	case R07_Istanbul:
		return "Istanbul"
	case R09_Berlin:
		return "Berlin"
	case R10_London:
		return "London"
	case R11_Paris:
		return "Paris"
	case R12_Shanghai:
		return "Shanghai"
	case R13_Cancun:
		return "Cancun"
	default:
		return fmt.Sprintf("Revision(%d)", int(r))
	}
}

// ErrUnsupportedRevision is returned by Run for revisions outside the
// supported range.
type ErrUnsupportedRevision struct {
	Revision Revision
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("unsupported revision %d", e.Revision)
}
