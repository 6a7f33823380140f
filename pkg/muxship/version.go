package muxship

// Version is the release of the muxship module. Binaries built from a tagged
// module report the tag instead.
const Version = "0.1.0"
