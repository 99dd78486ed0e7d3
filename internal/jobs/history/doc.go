// Package history archives jobs pruned from the live registry into a local
// sqlite database so operators can review past runs after retention expires.
package history
