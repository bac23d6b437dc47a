package usecases

import (
	"errors"
	"fmt"
)

// Errors for the song request module.
var (
	// ErrPermissionDenied is returned when the sender may not request right now.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrQueueFull is returned when the request queue is at capacity.
	ErrQueueFull = errors.New("the request queue is full")

	// ErrDuplicateItem is returned when the same track is already queued.
	ErrDuplicateItem = errors.New("the track is already queued")

	// ErrResolutionFailed is returned when a query or track cannot be turned into something playable.
	ErrResolutionFailed = errors.New("failed to resolve item")

	// ErrVideoDisabled is returned when a video is requested while video playback is off.
	ErrVideoDisabled = errors.New("video playback is disabled")

	// ErrExternalDisabled is returned when the secondary source is not configured.
	ErrExternalDisabled = errors.New("secondary source is disabled")

	// ErrProcessLaunchFailed is returned when the player process cannot be started.
	ErrProcessLaunchFailed = errors.New("failed to launch player")

	// ErrProcessCrashed is returned when the player exits abnormally.
	ErrProcessCrashed = errors.New("player exited abnormally")

	// ErrIPCUnavailable is returned when no player is running to receive a command.
	ErrIPCUnavailable = errors.New("player control channel unavailable")

	// ErrKeyMismatch is returned when text is not the current admin key.
	ErrKeyMismatch = errors.New("admin key mismatch")

	// ErrKeyAlreadyUsed is returned when the current admin key was already redeemed.
	ErrKeyAlreadyUsed = errors.New("admin key already used")

	// ErrInvalidPosition is returned when a queue position is out of range.
	ErrInvalidPosition = errors.New("invalid queue position")

	// ErrInvalidVolume is returned when a volume is outside 0-100.
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")

	// ErrInvalidCount is returned when a quota grant is outside its range.
	ErrInvalidCount = errors.New("invalid grant count")

	// ErrInvalidBuffer is returned when a watchdog buffer is outside its range.
	ErrInvalidBuffer = errors.New("invalid timeout buffer")
)

// DuplicateItemError names the track that is already queued. It matches ErrDuplicateItem.
type DuplicateItemError struct {
	Title string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateItem, e.Title)
}

func (e *DuplicateItemError) Unwrap() error {
	return ErrDuplicateItem
}
