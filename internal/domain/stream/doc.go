// Package stream keeps the registry of proxied responses that are in flight.
//
// Every proxied page gets a Session with a ULID-based stream ID, which is
// returned to the browser in the X-Stream-ID header. While the page streams,
// the session accepts fragments for its injector, counts boundaries, and
// publishes events to every subscriber of the Manager.
//
// Events:
//   - stream-open: a page started streaming
//   - boundary: the transform paused at a body boundary
//   - inject: a fragment was written into the page
//   - stream-close: the page finished, with the error if it failed
//
// Subscribers have a bounded backlog. A subscriber that falls behind loses
// events instead of slowing the page down.
//
// Example Usage:
//
//	session := manager.Open("/docs/index.html")
//	defer manager.Close(session.ID)
//	inj := inject.New(w, inject.WithOnInject(session.RecordInjection))
//	session.Attach(inj)
//	t := htmlstream.NewTransform(session.Tap(inj))
package stream
