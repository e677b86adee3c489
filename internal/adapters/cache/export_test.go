package cache

// DecodeEntries exposes decodeEntries to tests.
var DecodeEntries = decodeEntries
