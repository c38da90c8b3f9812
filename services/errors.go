package services

import "errors"

var (
	// ErrAuthTokenIsRequired is returned if you are trying to initialize
	// a service which requires some token to work.
	ErrAuthTokenIsRequired = errors.New("auth token is required")

	// ErrOwnAddressIsNotSupported is returned by services which can
	// resolve only given IP addresses.
	ErrOwnAddressIsNotSupported = errors.New("service cannot resolve own address")

	// ErrIPIsNotSupported is returned by services which can resolve
	// only own address.
	ErrIPIsNotSupported = errors.New("service cannot resolve a given ip address")

	// ErrDatabaseIsNotReadyYet is returned if database of offline
	// service is closed.
	ErrDatabaseIsNotReadyYet = errors.New("database is not initialized yet")

	// ErrDatabaseIsAlreadyOpened is returned if a reader supports only
	// a single opened database per process.
	ErrDatabaseIsAlreadyOpened = errors.New("database is already opened")

	// ErrServiceFailure is returned if service has responded with
	// some failure status.
	ErrServiceFailure = errors.New("service has reported a failure")

	// ErrParameterIsRequired is returned if some required parameter
	// of the service is missing.
	ErrParameterIsRequired = errors.New("parameter is required")
)
