package router

import "errors"

var (
	ErrRouterNotInit      = errors.New("router: not initialized")
	ErrAlreadyInitialized = errors.New("router: already initialized")
	ErrUnknownWorker      = errors.New("router: unknown worker")
	ErrUnknownAsyncResp   = errors.New("router: unknown async response id")
	ErrFactoryFailure     = errors.New("router: shared object factory returned nil")
	ErrAlreadyShared      = errors.New("router: object already shared")
	ErrWorkerClosed       = errors.New("router: peer worker closed")
)
