package tags

import (
	"fmt"
	"math/rand"
)

// DefaultCatalogSize is the standard tag count for the emulated plant.
const DefaultCatalogSize = 200

// coreCatalog lists the curated plant tags with their startup values. The
// numbers match the commissioning state of the emulated works: blower and
// dosing running, influent pump idle at mid wet-well level.
var coreCatalog = []Tag{
	{Name: GlobalMode, Type: KindInt, Description: "Operating mode (0=AUTO, 1=MANUAL, 2=MAINTENANCE)", Default: Int(0)},
	{Name: KillSwitch, Type: KindBool, Description: "Emergency kill switch", Default: Bool(false)},

	{Name: QIn, Type: KindFloat, Unit: "m3/h", Description: "Influent flow rate", Default: Float(15.0)},
	{Name: LT101, Type: KindFloat, Unit: "m", Description: "Wet well level - Last service: 15.3.2024", Default: Float(1.2)},
	{Name: PMP101CMD, Type: KindBool, Description: "Pump 101 - command", Default: Bool(false)},
	{Name: PMP101FB, Type: KindBool, Description: "Pump 101 - feedback", Default: Bool(false)},
	{Name: PMP101Auto, Type: KindBool, Description: "Pump 101 - auto mode", Default: Bool(true)},
	{Name: PMP101Runtime, Type: KindFloat, Unit: "h", Description: "Pump 101 runtime hours - Next service: 15000h", Default: Float(12450.5)},
	{Name: PMP101Fault, Type: KindBool, Description: "Pump 101 fault", Default: Bool(false)},
	{Name: VLV101Pos, Type: KindFloat, Unit: "%", Description: "Inlet valve position", Default: Float(100.0)},
	{Name: VLV101CMD, Type: KindFloat, Unit: "%", Description: "Inlet valve command", Default: Float(100.0)},

	{Name: SCR101DP, Type: KindFloat, Unit: "bar", Description: "Screen differential pressure", Default: Float(0.15)},
	{Name: SCR101CMD, Type: KindBool, Description: "Screen auto-clean command", Default: Bool(false)},
	{Name: SCR101FB, Type: KindBool, Description: "Screen auto-clean feedback", Default: Bool(false)},
	{Name: SCR101Fault, Type: KindBool, Description: "Screen fault", Default: Bool(false)},
	{Name: SCR101Auto, Type: KindBool, Description: "Screen auto mode", Default: Bool(true)},

	{Name: GRT201Level, Type: KindFloat, Unit: "m", Description: "Grit chamber level", Default: Float(0.5)},
	{Name: GRS201Skim, Type: KindBool, Description: "Grease skimmer active", Default: Bool(false)},

	{Name: LT301, Type: KindFloat, Unit: "m", Description: "Primary clarifier level", Default: Float(1.5)},
	{Name: PMP301CMD, Type: KindBool, Description: "Primary pump 301 - command", Default: Bool(true)},
	{Name: PMP301FB, Type: KindBool, Description: "Primary pump 301 - feedback", Default: Bool(true)},
	{Name: PMP301Auto, Type: KindBool, Description: "Primary pump 301 - auto mode", Default: Bool(true)},
	{Name: PMP301Fault, Type: KindBool, Description: "Primary pump 301 fault", Default: Bool(false)},
	{Name: PMP301Runtime, Type: KindFloat, Unit: "h", Description: "Primary pump 301 runtime hours", Default: Float(6230.2)},
	{Name: CODPrimary, Type: KindFloat, Unit: "mg/L", Description: "COD after primary settling", Default: Float(180.0)},

	{Name: LT201, Type: KindFloat, Unit: "m", Description: "Aeration tank level", Default: Float(2.5)},
	{Name: DO301, Type: KindFloat, Unit: "mg/L", Description: "Dissolved oxygen", Default: Float(2.5)},
	{Name: DO301SP, Type: KindFloat, Unit: "mg/L", Description: "DO setpoint", Default: Float(2.5)},
	{Name: PH302, Type: KindFloat, Description: "pH value", Default: Float(7.2)},
	{Name: Temp303, Type: KindFloat, Unit: "°C", Description: "Temperature", Default: Float(18.0)},
	{Name: BLW201CMD, Type: KindBool, Description: "Blower 201 - command", Default: Bool(true)},
	{Name: BLW201FB, Type: KindBool, Description: "Blower 201 - feedback", Default: Bool(true)},
	{Name: BLW201Auto, Type: KindBool, Description: "Blower 201 - auto mode", Default: Bool(true)},
	{Name: BLW201SP, Type: KindFloat, Unit: "%", Description: "Blower speed setpoint", Default: Float(75.0)},
	{Name: BLW201PV, Type: KindFloat, Unit: "%", Description: "Blower actual speed", Default: Float(75.0)},
	{Name: BLW201Fault, Type: KindBool, Description: "Blower VFD fault", Default: Bool(false)},
	{Name: BLW201Runtime, Type: KindFloat, Unit: "h", Description: "Blower runtime hours", Default: Float(8760.0)},
	{Name: BLW201Current, Type: KindFloat, Unit: "A", Description: "Blower current - Rated: 15A", Default: Float(12.5)},

	{Name: LT401, Type: KindFloat, Unit: "m", Description: "Secondary clarifier level", Default: Float(1.8)},
	{Name: TUR501, Type: KindFloat, Unit: "NTU", Description: "Effluent turbidity", Default: Float(2.5)},
	{Name: PMP401CMD, Type: KindBool, Description: "RAS pump 401 - command", Default: Bool(true)},
	{Name: PMP401FB, Type: KindBool, Description: "RAS pump 401 - feedback", Default: Bool(true)},
	{Name: PMP401Auto, Type: KindBool, Description: "RAS pump 401 - auto mode", Default: Bool(true)},
	{Name: PMP401Runtime, Type: KindFloat, Unit: "h", Description: "RAS pump runtime hours - Last maintenance: 20.1.2024", Default: Float(15620.3)},
	{Name: PMP402CMD, Type: KindBool, Description: "WAS pump 402 - command", Default: Bool(false)},
	{Name: PMP402FB, Type: KindBool, Description: "WAS pump 402 - feedback", Default: Bool(false)},
	{Name: PMP402Auto, Type: KindBool, Description: "WAS pump 402 - auto mode", Default: Bool(true)},
	{Name: PMP402Runtime, Type: KindFloat, Unit: "h", Description: "WAS pump runtime hours - New pump installed: 10.8.2024", Default: Float(3420.7)},

	{Name: DoseFeCl3, Type: KindFloat, Unit: "L/h", Description: "FeCl3 dosing rate", Default: Float(2.5)},
	{Name: DoseFeCl3SP, Type: KindFloat, Unit: "L/h", Description: "FeCl3 dosing setpoint", Default: Float(2.5)},
	{Name: PMP501CMD, Type: KindBool, Description: "Chemical pump 501 - command", Default: Bool(true)},
	{Name: PMP501FB, Type: KindBool, Description: "Chemical pump 501 - feedback", Default: Bool(true)},
	{Name: PMP501Auto, Type: KindBool, Description: "Chemical pump 501 - auto mode", Default: Bool(true)},
	{Name: PMP501Runtime, Type: KindFloat, Unit: "h", Description: "Chemical pump 501 runtime hours", Default: Float(4120.8)},
	{Name: Tank501Level, Type: KindFloat, Unit: "%", Description: "FeCl3 tank level", Default: Float(75.0)},
	{Name: DosePoly, Type: KindFloat, Unit: "L/h", Description: "Polymer dosing rate", Default: Float(0.5)},
	{Name: VLV501Pos, Type: KindFloat, Unit: "%", Description: "Chemical valve position", Default: Float(50.0)},
	{Name: VLV501CMD, Type: KindFloat, Unit: "%", Description: "Chemical valve command", Default: Float(50.0)},

	{Name: QOut, Type: KindFloat, Unit: "m3/h", Description: "Effluent flow rate", Default: Float(14.5)},
	{Name: PH501, Type: KindFloat, Description: "Effluent pH", Default: Float(7.1)},
	{Name: COD501, Type: KindFloat, Unit: "mg/L", Description: "Effluent COD", Default: Float(25.0)},

	{Name: DO301CtrlEn, Type: KindBool, Description: "DO controller - enabled", Default: Bool(true)},
	{Name: DO301CtrlMode, Type: KindBool, Description: "DO controller - mode (1=AUTO, 0=MANUAL)", Default: Bool(true)},
	{Name: DO301CtrlActive, Type: KindBool, Description: "DO controller - active", Default: Bool(false)},
	{Name: LT101CtrlEn, Type: KindBool, Description: "Level controller - enabled", Default: Bool(true)},
	{Name: LT101CtrlActive, Type: KindBool, Description: "Level controller - active", Default: Bool(false)},
}

// CoreNames returns the names of the curated plant tags in catalog order.
func CoreNames() []string {
	names := make([]string, len(coreCatalog))
	for i, tag := range coreCatalog {
		names[i] = tag.Name
	}
	return names
}

var (
	fillerAreas   = []string{"INFLUENT", "SCREENING", "GRIT", "PRIMARY", "AERATION", "CLARIFIER", "CHEMICAL", "EFFLUENT", "SLUDGE"}
	fillerDevices = []string{"PMP", "BLW", "VALV", "LT", "FT", "PT", "TT", "AT", "DO", "pH"}
	fillerAttrs   = []string{"PV", "SP", "CMD", "FB", "AUTO", "FAULT", "RUNTIME", "CURRENT"}
)

// Catalog returns the full tag list: the curated core plus generated filler
// up to count. Filler generation is driven by the seed, so the same seed
// always yields the same catalog.
func Catalog(count int, seed int64) []Tag {
	if count < len(coreCatalog) {
		count = len(coreCatalog)
	}
	out := make([]Tag, 0, count)
	seen := make(map[string]struct{}, count)
	for _, tag := range coreCatalog {
		out = append(out, tag)
		seen[tag.Name] = struct{}{}
	}

	rng := rand.New(rand.NewSource(seed))
	deviceID := 102
	for len(out) < count {
		area := fillerAreas[rng.Intn(len(fillerAreas))]
		device := fillerDevices[rng.Intn(len(fillerDevices))]
		attr := fillerAttrs[rng.Intn(len(fillerAttrs))]

		name := fmt.Sprintf("WWTP01:%s:%s%d.%s", area, device, deviceID, attr)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		tag := Tag{Name: name, Unit: fillerUnit(device, attr), Description: fmt.Sprintf("%s %d %s", device, deviceID, attr)}
		if attr == "CMD" || attr == "FB" || attr == "AUTO" || attr == "FAULT" {
			tag.Type = KindBool
			tag.Default = Bool(false)
		} else {
			tag.Type = KindFloat
			tag.Default = Float(0)
		}
		out = append(out, tag)

		deviceID++
		if deviceID > 999 {
			deviceID = 102
		}
	}
	return out
}

func fillerUnit(device, attr string) string {
	switch attr {
	case "CMD", "FB", "AUTO", "FAULT":
		return ""
	case "RUNTIME":
		if device == "PMP" || device == "BLW" {
			return "h"
		}
	case "CURRENT":
		if device == "PMP" || device == "BLW" {
			return "A"
		}
	}
	switch device {
	case "LT":
		return "m"
	case "FT":
		return "m3/h"
	case "PT":
		return "bar"
	case "TT":
		return "°C"
	case "DO":
		return "mg/L"
	case "BLW":
		if attr == "SP" || attr == "PV" {
			return "%"
		}
	}
	return ""
}
