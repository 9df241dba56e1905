package db

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned when a hash or string key does not exist.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned by FT commands against a missing index.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by FT.CREATE when the chunk index is already there.
	ErrIndexExists = errors.New("db: index already exists")
)

// Command names recorded on Error.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error is a failed server command. Key is empty for commands without a single key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with the command and key. A nil err stays nil.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}
