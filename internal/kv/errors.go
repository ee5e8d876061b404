package kv

import "errors"

// errStoreFailed is returned by MemoryStore when failure injection is on.
var errStoreFailed = errors.New("kv: store failure injected")
