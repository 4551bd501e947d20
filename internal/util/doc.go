// Package util provides small helpers shared across the auth framework.
//
// Key utilities:
//   - SafeTruncate: Safely truncates strings for logging credential prefixes
//   - SplitScope / JoinScopes: OAuth scope parameter handling
//   - ValidateRedirectURI: Redirect URI checks for client registration
package util
