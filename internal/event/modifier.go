package event

// ModifierFlag enumerates the modifier keys the queue's modifier-flag
// manager tracks (spec.md §3 "Queue", modifier flag manager).
type ModifierFlag int

const (
	ModifierNone ModifierFlag = iota
	ModifierLeftControl
	ModifierLeftShift
	ModifierLeftOption
	ModifierLeftCommand
	ModifierRightControl
	ModifierRightShift
	ModifierRightOption
	ModifierRightCommand
	ModifierFn
	ModifierCapsLock
)

// usage page/usage constants for the keyboard/keypad page (0x07) and the
// Apple vendor pages, limited to the modifier range (0xE0-0xE7) plus
// caps lock,
// mirroring the HID usage tables the original source's `key_code`
// constants are drawn from.
const (
	UsagePageKeyboardOrKeypad uint32 = 0x07
	UsagePageAppleVendorTopCase uint32 = 0xFF
	UsagePageAppleVendorKeyboard uint32 = 0xFF01

	UsageLeftControl  uint32 = 0xE0
	UsageLeftShift    uint32 = 0xE1
	UsageLeftOption   uint32 = 0xE2
	UsageLeftCommand  uint32 = 0xE3
	UsageRightControl uint32 = 0xE4
	UsageRightShift   uint32 = 0xE5
	UsageRightOption  uint32 = 0xE6
	UsageRightCommand uint32 = 0xE7
	UsageCapsLock     uint32 = 0x39
)

var modifierByUsage = map[UsagePair]ModifierFlag{
	{UsagePageKeyboardOrKeypad, UsageLeftControl}:  ModifierLeftControl,
	{UsagePageKeyboardOrKeypad, UsageLeftShift}:    ModifierLeftShift,
	{UsagePageKeyboardOrKeypad, UsageLeftOption}:   ModifierLeftOption,
	{UsagePageKeyboardOrKeypad, UsageLeftCommand}:  ModifierLeftCommand,
	{UsagePageKeyboardOrKeypad, UsageRightControl}: ModifierRightControl,
	{UsagePageKeyboardOrKeypad, UsageRightShift}:   ModifierRightShift,
	{UsagePageKeyboardOrKeypad, UsageRightOption}:  ModifierRightOption,
	{UsagePageKeyboardOrKeypad, UsageRightCommand}: ModifierRightCommand,
}

// ModifierFlagForUsagePair returns the modifier flag a momentary switch
// usage pair denotes, if any. Non-modifier keys return (ModifierNone,
// false).
func ModifierFlagForUsagePair(up UsagePair) (ModifierFlag, bool) {
	f, ok := modifierByUsage[up]
	return f, ok
}

// IsModifier reports whether this event is a momentary-switch event for
// a modifier key.
func (e Event) IsModifier() bool {
	if e.Kind != KindMomentarySwitch {
		return false
	}
	_, ok := ModifierFlagForUsagePair(e.MomentarySwitch)
	return ok
}
