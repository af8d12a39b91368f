package resolver

import (
	"fmt"
	"strings"

	"kerbal-mod-manager/mods"
)

// ConflictPair is two releases that cannot coexist, with the descriptor
// that forbids it.
type ConflictPair struct {
	A          *mods.Release
	B          *mods.Release
	Descriptor *mods.RelationshipDescriptor
}

func (p ConflictPair) String() string {
	return fmt.Sprintf("%s conflicts with %s (via %s)",
		p.A.FullName(), p.B.FullName(), p.Descriptor.String())
}

// ConflictsError reports releases in the request set that cannot coexist.
type ConflictsError struct {
	Pairs []ConflictPair
}

func (e *ConflictsError) Error() string {
	parts := make([]string, len(e.Pairs))
	for i, p := range e.Pairs {
		parts[i] = p.String()
	}
	return "conflicting mods: " + strings.Join(parts, "; ")
}

// UnmetDependenciesError reports relationships no provider could satisfy,
// each with the full trace from the user request down to the dead end.
type UnmetDependenciesError struct {
	Traces [][]Resolved
}

func (e *UnmetDependenciesError) Error() string {
	parts := make([]string, len(e.Traces))
	for i, trace := range e.Traces {
		parts[i] = DescribeTrace(trace)
	}
	return "unsatisfied dependencies:\n" + strings.Join(parts, "\n")
}
