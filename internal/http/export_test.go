package http

var Backoff = backoff
