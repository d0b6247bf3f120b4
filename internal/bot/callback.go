package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CallbackAction identifies what an inline button press asks for.
type CallbackAction int

const (
	ActionIncrement CallbackAction = iota
	ActionDecrement
	ActionRemove
	ActionQuantity
	ActionSummary
	ActionFinalize
)

var ErrBadCallback = errors.New("malformed callback payload")

// Callback is a parsed inline button payload. ProductID is only meaningful
// for the card actions (increment, decrement, remove, quantity).
type Callback struct {
	Action    CallbackAction
	ProductID uint
}

// CardActions target a single product and mutate or report its cart line.
func (c Callback) CardAction() bool {
	switch c.Action {
	case ActionIncrement, ActionDecrement, ActionRemove, ActionQuantity:
		return true
	}
	return false
}

// ParseCallback decodes the wire payloads "card:<inc|dec|qty|rm>:<id>" and
// "pick:<summary|done>". Anything else is rejected up front so the handlers
// never see a half-valid action.
func ParseCallback(data string) (Callback, error) {
	switch data {
	case "pick:summary":
		return Callback{Action: ActionSummary}, nil
	case "pick:done":
		return Callback{Action: ActionFinalize}, nil
	}

	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "card" {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}

	var action CallbackAction
	switch parts[1] {
	case "inc":
		action = ActionIncrement
	case "dec":
		action = ActionDecrement
	case "qty":
		action = ActionQuantity
	case "rm":
		action = ActionRemove
	default:
		return Callback{}, fmt.Errorf("%w: unknown card action %q", ErrBadCallback, parts[1])
	}

	id, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil || id == 0 {
		return Callback{}, fmt.Errorf("%w: bad product id %q", ErrBadCallback, parts[2])
	}

	return Callback{Action: action, ProductID: uint(id)}, nil
}
