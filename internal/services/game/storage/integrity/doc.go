// Package integrity hashes and signs the action history so every accepted
// action is linked to its predecessor and tampering is detectable.
package integrity
