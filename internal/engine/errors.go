package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownHub       = errors.New("unknown trade hub")
	ErrUnknownSkill     = errors.New("unknown skill")
	ErrUnknownSource    = errors.New("unknown data source")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// HubError names the hub that failed to resolve. It matches ErrUnknownHub.
type HubError struct {
	Name string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("unknown trade hub: %q", e.Name)
}

func (e *HubError) Is(target error) bool { return target == ErrUnknownHub }
