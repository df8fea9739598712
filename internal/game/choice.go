package game

import "fmt"

// Choice is one presented option taken from a context snapshot. It stays
// valid only while that context is live.
type Choice struct {
	owner   *Context
	index   int
	display string
}

// Display returns the label shown to the player.
func (c Choice) Display() string {
	return c.display
}

// Index returns the zero-based position in the choice list.
func (c Choice) Index() int {
	return c.index
}

func (c Choice) String() string {
	return fmt.Sprintf("%d: %s", c.index, c.display)
}
