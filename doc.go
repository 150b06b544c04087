/*
Package bff implements the concurrency core of a backend-for-frontend
HTTP/1.1 server: a fixed pool of single-threaded reactor workers, each
bound to its own SO_REUSEPORT listening socket, serving a small static
set of JSON routes at very low per-connection overhead.

Design

Every worker runs an edge-triggered, one-shot epoll loop (core/poller)
over a fixed-capacity pool of connection records (core/pools): a plain
LIFO free-index stack for the common case, falling back to a shared,
lock-free CAS stack when a worker's local pool is exhausted. Per-request
and per-keepalive deadlines are tracked in a binary min-heap timer wheel
(core/timerheap) built on container/heap, addressed by a stable handle
so cancellation never requires a linear scan.

Requests are parsed incrementally (core/http): a cheap pre-scan locates
the header terminator before the full parser ever runs, request bodies
and protocol upgrades are rejected outright, and the request-dispatcher
(core/dispatcher.go) resolves one of four fixed GET routes from an
immutable route table (core/routes) built once at startup.

Modules

  - app: process lifecycle — worker supervision via errgroup, signal
    handling, the optional metrics HTTP server
  - config: layered configuration (flags, .env, process environment)
  - core: the reactor event loop, connection state machine, and
    request dispatcher
  - core/http: the incremental HTTP/1.1 request parser
  - core/poller: the edge-triggered, one-shot epoll wrapper
  - core/pools: the local/fallback connection record pool
  - core/timerheap: the per-worker deadline heap
  - core/routes: the immutable static route table
  - core/metrics: the error-kind/connection-count metrics hook and its
    Prometheus-backed implementation
  - core/optimize: architecture-dispatched byte scanning used by the
    optional repeated-byte request guard
  - cmd/bffserver: the process entrypoint

Non-goals

HTTP/2, TLS termination, chunked or otherwise bodied requests, request
pipelining, WebSocket/SSE upgrades, and dynamic or file-backed response
content are all out of scope; the server exists to answer a small,
fixed set of JSON endpoints as fast as a single core can drive a socket.
*/
package bff
