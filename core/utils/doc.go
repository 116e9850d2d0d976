// Package utils holds small conversion helpers used by the HTTP and CLI layers,
// such as reading boolean query flags.
package utils
