// Package httpx holds the JSON transport helpers shared by the API handlers:
// response writing, strict request decoding, DTO validation and the mapping
// of domain errors onto the wire.
package httpx
