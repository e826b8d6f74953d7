package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrCreateProviderFmt      = "Failed to create provider: %v"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"

	// Remote repository errors
	ErrRemoteUnavailable = "Content repository unavailable"

	// Draft queue errors
	ErrNothingToPublish = "Nothing to publish"
	ErrChangeNotFound   = "Change not found"
	ErrPublishFailedFmt = "Failed to publish changes: %v"

	// Content errors
	ErrInitializingPosts = "Error initializing posts"
	ErrReloadingPosts    = "Error reloading posts"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)
