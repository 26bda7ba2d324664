// Package sse streams flowkit lifecycle events to HTTP clients as
// Server-Sent Events.
//
// A Hub fans published events out to connected clients. Each client
// subscribes with a topic glob ("pipeline:*", "job:nightly", "*") and
// receives the events whose topic matches it:
//
//	hub := sse.NewHub()
//	go hub.Run()
//	hub.Publish(sse.Event{Type: "pipeline.completed", Topic: "pipeline:etl", Data: inst})
package sse
