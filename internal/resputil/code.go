package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40106

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	// Entity not found
	NotFound ErrorCode = 40401

	// Workflow error kinds, one stable code per kind so the frontend can
	// branch without parsing messages.
	InvalidTransition      ErrorCode = 40901
	InvalidState           ErrorCode = 40902
	CapacityExceeded       ErrorCode = 40903
	EscrowNotFunded        ErrorCode = 40904
	IrreversibleState      ErrorCode = 40905
	OfferExpired           ErrorCode = 40906
	InvalidEscalation      ErrorCode = 40907
	ConcurrentModification ErrorCode = 40908
	SubjectNotActive       ErrorCode = 40909
	DisputeSuspended       ErrorCode = 40910

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
