// Package bus implements the in-process publish/subscribe primitive.
//
// One Bus instance serves one topic domain: the site-wide metadata bus uses the
// single SiteKey, the session bus keys subscriptions by session id. Publish is a
// bounded non-blocking enqueue per subscriber - a slow consumer loses events, it
// never stalls the publisher.
package bus
