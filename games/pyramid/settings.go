package pyramid

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinRows     = 3
	MaxRows     = 7
	DefaultRows = 5
)

// Setting keys accepted by UpdateSetting.
const (
	SettingDeck               = "deck"
	SettingRows               = "rows"
	SettingUseExternalDisplay = "useExternalDisplay"
)

type Settings struct {
	Deck               DeckSize `json:"deck"`
	Rows               int      `json:"rows"`
	UseExternalDisplay bool     `json:"useExternalDisplay"`
}

func DefaultSettings() Settings {
	return Settings{
		Deck: DeckSmall,
		Rows: DefaultRows,
	}
}

func ClampRows(n int) int {
	return max(MinRows, min(MaxRows, n))
}

// Cells is the number of cells in the configured pyramid.
func (s Settings) Cells() int {
	return s.Rows * (s.Rows + 1) / 2
}

// with returns a copy of s with key set to the parsed value. Rows that do not
// parse as a number fall back to the default before clamping.
func (s Settings) with(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)

	switch key {
	case SettingDeck:
		d := DeckSize(strings.ToLower(value))
		if !d.Valid() {
			return s, fmt.Errorf("%w: deck %q", ErrInvalidSetting, value)
		}
		s.Deck = d
	case SettingRows:
		n, err := strconv.Atoi(value)
		if err != nil || n == 0 {
			n = DefaultRows
		}
		s.Rows = ClampRows(n)
	case SettingUseExternalDisplay:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return s, fmt.Errorf("%w: %s %q", ErrInvalidSetting, key, value)
		}
		s.UseExternalDisplay = b
	default:
		return s, fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}

	return s, nil
}
