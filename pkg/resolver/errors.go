package resolver

import (
	"fmt"
	"strings"
)

// NotFoundError reports that no entity carries the identifier.
type NotFoundError struct {
	Kind        string
	ID          string
	Namespace   string
	Compartment string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("could not find %s %s in namespace %s", e.Kind, e.ID, e.Namespace)
	if e.Compartment != "" {
		msg += " and compartment " + e.Compartment
	}
	return msg
}

// AmbiguousError reports that several entities carry the identifier.
type AmbiguousError struct {
	Kind       string
	ID         string
	Namespace  string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("expected a single %s for %s:%s, found %s",
		e.Kind, e.Namespace, e.ID, strings.Join(e.Candidates, ", "))
}
