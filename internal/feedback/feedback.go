// Package feedback models the optional haptics collaborator as an injected
// capability. Notifications are fire-and-forget: the engine never depends on
// their presence or success.
package feedback

// Feedback receives best-effort, non-blocking notifications. Implementations
// must swallow their own failures; nothing they do may affect game state.
type Feedback interface {
	// LightImpact is fired on every scored tap.
	LightImpact()
	// Success is fired when a level is passed.
	Success()
}

// Noop is the default implementation used when no collaborator is wired.
type Noop struct{}

func (Noop) LightImpact() {}

func (Noop) Success() {}
