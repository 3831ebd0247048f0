// Package app wires the dependencies cmd/e2ecli needs: a Suite choice, a
// logger, and the on-disk path for the sealed key vault.
package app
