// Package server is the flowkit admin HTTP server: gin behind h2c, with
// recovery, request ids, request logging, CORS, body limits and optional
// JWT auth from server/middleware. Probe handlers live in server/endpoint.
//
// The server implements component.Component so bootstrap starts it after
// the orchestrator and stops it first.
package server
