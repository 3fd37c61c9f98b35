package challenges

import "github.com/dmitrijs2005/scanpass/internal/server/vision/motion"

// Template is the user-facing wording of one challenge direction.
type Template struct {
	Direction   motion.Direction
	Text        string
	Description string
}

// Catalog holds every challenge the director can issue.
var Catalog = []Template{
	{
		Direction:   motion.DirectionRotateClockwise,
		Text:        "Rotate your object clockwise slowly",
		Description: "Rotate the object in a clockwise direction",
	},
	{
		Direction:   motion.DirectionRotateCounterclockwise,
		Text:        "Rotate your object counterclockwise slowly",
		Description: "Rotate the object in a counterclockwise direction",
	},
	{
		Direction:   motion.DirectionMoveCloser,
		Text:        "Move your object closer to the camera",
		Description: "Bring the object towards the camera",
	},
	{
		Direction:   motion.DirectionMoveAway,
		Text:        "Move your object away from the camera",
		Description: "Pull the object away from the camera",
	},
	{
		Direction:   motion.DirectionTiltLeft,
		Text:        "Tilt your object to the left",
		Description: "Tilt or move the object to the left",
	},
	{
		Direction:   motion.DirectionTiltRight,
		Text:        "Tilt your object to the right",
		Description: "Tilt or move the object to the right",
	},
}

// Lookup returns the template for d.
func Lookup(d motion.Direction) (Template, bool) {
	for _, t := range Catalog {
		if t.Direction == d {
			return t, true
		}
	}
	return Template{}, false
}
