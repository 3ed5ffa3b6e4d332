// Package oauth1 implements the OAuth 1.0a HMAC-SHA1 signing algorithm
// (RFC 5849) used by the FatSecret platform API.
//
// The signer is a pure function over its inputs: it performs no I/O and
// holds no state. Both output shapes - the Authorization header and the
// query-embedded parameter map - are produced by the same signing routine,
// so the percent-encoding and base string logic exists exactly once.
//
// The signature base string algorithm is byte-exact by necessity: any
// deviation in encoding or parameter ordering silently invalidates every
// signed request.
package oauth1
