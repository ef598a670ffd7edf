// Package mep decodes the embedded matching-engine protocol carried inside
// transport blocks tagged 'E'.
//
// Every message starts with a 16-byte little-endian header (length, type
// code, sequence, send time in nanoseconds). The body is a fixed layout per
// type, described by the schemas in schema.go. Decoding is lenient: a buffer
// shorter than its layout still yields the header, and unknown type codes
// expose their remaining bytes as an opaque payload.
package mep
