// Package pubsub handles inbound Google Cloud Pub/Sub push deliveries.
//
// It provides two pieces:
//
//   - Envelope decoding: the push wrapper carries an opaque base64-encoded
//     data blob plus an optional flat attribute map. The decoded blob takes
//     precedence; attributes are a per-field fallback. Both base64 alphabets
//     and missing padding are tolerated, since publishers are inconsistent.
//
//   - Token verification: push deliveries authenticate themselves with an
//     OIDC identity token signed by Google. Verification checks signature
//     (RS256 against Google's published JWKS), issuer, audience (URL-prefix
//     policy), the expected signer service account and its email_verified
//     claim. Claims must never be trusted from an unverified decode.
package pubsub
