package common

// File permission constants used for everything the harness writes locally
const (
	// FilePermissionSecure is used for the ledger database and cached state
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for archived batch payloads
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for ~/.studiopipe
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for archive directories
	DirPermissionNormal = 0755
)
