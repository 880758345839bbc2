package handler

import (
	"fmt"

	"github.com/mymmrac/telego"
)

// TTL presets offered when /gc or /fwd is called without an argument
var ttlPresets = []string{"5m", "30m", "1h", "6h", "1d", "2d"}

// ttlKeyboard builds a one-time reply keyboard with TTL presets for
// the given command plus an abort row.
func ttlKeyboard(command string) *telego.ReplyKeyboardMarkup {
	var rows [][]telego.KeyboardButton
	var row []telego.KeyboardButton
	for _, preset := range ttlPresets {
		row = append(row, telego.KeyboardButton{Text: fmt.Sprintf("/%s %s", command, preset)})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []telego.KeyboardButton{
		{Text: fmt.Sprintf("/%s 0", command)},
		{Text: "/noop - cancel"},
	})

	return &telego.ReplyKeyboardMarkup{
		Keyboard:        rows,
		OneTimeKeyboard: true,
		Selective:       true,
	}
}

// removeKeyboard hides any previously shown reply keyboard
func removeKeyboard() *telego.ReplyKeyboardRemove {
	return &telego.ReplyKeyboardRemove{
		RemoveKeyboard: true,
		Selective:      true,
	}
}
