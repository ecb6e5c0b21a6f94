/*
Package inject splices HTML fragments into proxied pages while they stream.

An Injector is the htmlstream.Sink at the end of a proxied response. Page
chunks are copied to the client as they arrive; at each boundary where the
scan position is a direct child of body, queued fragments are written
between the two chunks. Fragments never land inside another element, so the
page structure around them is unchanged.

Fragments come from two places:

  - Rules, a TOML file of glob patterns (doublestar) matched against the
    request path. Rule markup is trusted and checked once at load time.
  - The HTTP API, which posts markup for a live stream. That markup goes
    through a bluemonday UGC policy before it is queued.

Either way a fragment must pass htmlstream.Balanced, or it could leave the
page at a different depth than it found it.

PositionStart fragments are written at the first direct-child boundary.
PositionReady fragments wait for Ready, which the proxy signals once the
document head has gone out.
*/
package inject
