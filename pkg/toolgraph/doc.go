// Package toolgraph defines the data model and embedding contract for a
// declarative tool server: tools backed by directed graphs of nodes, where
// each node transforms data, branches on a condition, or forwards the call
// to a downstream tool-server process reached over stdio, SSE, or streaming
// HTTP.
//
// This package holds the types a host process (the out-of-scope RPC server
// that speaks the wire protocol to external clients) would sit behind: the
// graph configuration, the node variants, the execution history shape, the
// error taxonomy, and the Host interface. The engine that actually walks a
// graph lives in the internal packages; internal/engine.Engine is the
// concrete Host implementation wiring all of it together.
package toolgraph
