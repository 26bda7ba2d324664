package server

import (
	"context"

	"github.com/kbukum/flowkit/component"
)

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

func (s *Server) Name() string { return "http" }

func (s *Server) Health(context.Context) component.Health {
	if !s.Running() {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy, Message: s.Addr()}
}

func (s *Server) Describe() component.Description {
	details := s.Addr() + " h2c"
	if s.cfg.Auth.Enabled() {
		details += " jwt"
	}
	return component.Description{Type: "server", Details: details}
}
