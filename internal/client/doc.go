// Package client implements the consumer side of the push protocol.
//
// A Reconnector owns one push connection and its retry state: it connects,
// dispatches incoming frames, and on failure reconnects with bounded
// exponential backoff. Once the retry budget is exhausted it degrades to
// fixed-interval polling when a poll function is wired, so the consumer stays
// eventually consistent even without push.
package client
