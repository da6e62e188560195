package tags

// Plant-wide operating modes carried by the GLOBAL_MODE tag.
const (
	ModeAuto        int64 = 0
	ModeManual      int64 = 1
	ModeMaintenance int64 = 2
)

// ModeName returns the display name for a mode value.
func ModeName(mode int64) string {
	switch mode {
	case ModeAuto:
		return "AUTO"
	case ModeManual:
		return "MANUAL"
	case ModeMaintenance:
		return "MAINTENANCE"
	default:
		return "UNKNOWN"
	}
}

// ValidMode reports whether mode is one of the declared plant modes.
func ValidMode(mode int64) bool {
	return mode == ModeAuto || mode == ModeManual || mode == ModeMaintenance
}
