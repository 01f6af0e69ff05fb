// Package password hashes account passwords with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification reads the cost parameters from the stored hash, so raising
// the configured cost does not invalidate existing accounts. The package
// also exposes DeriveKey, the argon2id KDF used to protect credentials
// stored at rest on client machines.
package password
