package service

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Service defines a generic service.
type Service interface{}

// RunnableService defines a service that can be run.
type RunnableService interface {
	Service

	Run()
	Stop() error
}

// Group is a container for managing a bunch of services.
type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) { g.list = append(g.list, services...) }

// Start starts each service in the group.
func (g *Group) Start() {
	for _, s := range g.list {
		if v, ok := s.(RunnableService); ok {
			v.Run()
		}
	}
}

// Stop terminates a group of services.
func (g *Group) Stop() error {
	var errs *multierror.Error
	for _, s := range g.list {
		if v, ok := s.(RunnableService); ok {
			if err := v.Stop(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("failed to stop [%s] because of %v", s, err))
			}
		}
	}
	return errs.ErrorOrNil()
}
