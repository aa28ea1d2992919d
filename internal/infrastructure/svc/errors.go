package svc

import "errors"

// ErrNoSymbols 错误：没有可订阅的交易对
var ErrNoSymbols = errors.New("no symbols to subscribe")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
