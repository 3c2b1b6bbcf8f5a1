package xpattern

import "errors"

var (
	// ErrNilStore 传入的 Store 为 nil。
	ErrNilStore = errors.New("xpattern: store cannot be nil")
)
