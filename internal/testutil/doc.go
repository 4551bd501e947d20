// Package testutil provides testing utilities and fixtures for the auth framework:
// a controllable clock, key material in the PEM encodings the token manager accepts,
// PKCE pairs and helpers for tampering with compact tokens.
package testutil
