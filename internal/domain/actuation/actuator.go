package actuation

// ActuatorID names one physical positioning channel.
type ActuatorID string

const (
	// Left is the actuator pressing the left side of the panel.
	Left ActuatorID = "left"
	// Right is the actuator pressing the right side of the panel.
	Right ActuatorID = "right"
)

// Actuator holds the angles of one servo channel.
type Actuator struct {
	// ID identifies the channel in steps and hardware writes.
	ID ActuatorID
	// CurrentAngle is the last angle commanded to the hardware.
	CurrentAngle int
	// DefaultAngle is the resting position, clear of the panel.
	DefaultAngle int
	// PressedAngle is the position that touches the panel button.
	PressedAngle int
}

// AtRest reports whether the actuator sits at its default angle.
func (a *Actuator) AtRest() bool {
	return a.CurrentAngle == a.DefaultAngle
}

// Accepts reports whether angle is one of the two positions the actuator may hold.
func (a *Actuator) Accepts(angle int) bool {
	return angle == a.DefaultAngle || angle == a.PressedAngle
}
