package kv

import "fmt"

type stringer interface {
	String() string
}

func stringerOrSprint(v any) string {
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
