// Package internal defines the message protocol between the lstore gateway and
// the store actor: the command types, the Command envelope with its private
// reply channel and the Result delivered on it.
package internal
