package session

// PermissionChecker reports whether microphone capture is allowed.
type PermissionChecker interface {
	MicrophoneGranted() bool
}

// StaticPermission is a fixed answer, typically taken from configuration.
type StaticPermission bool

func (p StaticPermission) MicrophoneGranted() bool { return bool(p) }

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func() bool

func (f PermissionFunc) MicrophoneGranted() bool { return f() }
