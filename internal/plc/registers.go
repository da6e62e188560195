package plc

import "github.com/birising/OT-honey/internal/tags"

// Register image layout, as the site integrator programmed it: analog
// process values packed from 1000, commands from 2000, status bits
// from 3000. Unmapped addresses inside the image read as zero, like
// the spare words of a real data block.
const (
	imageSize = 10000
)

// analogPoint binds a holding register to a tag with a fixed-point scale.
type analogPoint struct {
	tag   string
	scale float64
}

// holdingImage maps holding registers (FC 3/6/16) to analog tags.
// Most process values carry one decimal, pH and screen differential
// pressure two, runtime counters and the mode word none.
var holdingImage = map[uint16]analogPoint{
	1000: {tags.QIn, 10},
	1001: {tags.LT101, 10},
	1002: {tags.LT201, 10},
	1003: {tags.DO301, 10},
	1004: {tags.DO301SP, 10},
	1005: {tags.PH302, 100},
	1006: {tags.Temp303, 10},
	1007: {tags.BLW201SP, 10},
	1008: {tags.BLW201PV, 10},
	1009: {tags.LT401, 10},
	1010: {tags.TUR501, 10},
	1011: {tags.QOut, 10},
	1012: {tags.BLW201Current, 10},
	1013: {tags.BLW201Runtime, 1},
	1014: {tags.PMP101Runtime, 1},
	1015: {tags.PMP401Runtime, 1},
	1016: {tags.PMP402Runtime, 1},
	1017: {tags.PH501, 100},
	1018: {tags.COD501, 10},
	1019: {tags.SCR101DP, 100},
	1020: {tags.GRT201Level, 10},
	1021: {tags.LT301, 10},
	1022: {tags.PMP301Runtime, 1},
	1023: {tags.DoseFeCl3, 10},
	1024: {tags.DoseFeCl3SP, 10},
	1025: {tags.Tank501Level, 10},
	1026: {tags.PMP501Runtime, 1},
	1027: {tags.VLV101Pos, 10},
	1028: {tags.VLV501Pos, 10},
	1029: {tags.CODPrimary, 10},
	1030: {tags.DosePoly, 10},
	1031: {tags.GlobalMode, 1},
}

// coilImage maps coils (FC 1/5/15) to digital command tags. Valve
// commands are not mapped; the integrator only wired the position
// feedback words, so valve writes land on read-only registers.
var coilImage = map[uint16]string{
	2000: tags.PMP101CMD,
	2001: tags.PMP101Auto,
	2002: tags.BLW201CMD,
	2003: tags.BLW201Auto,
	2004: tags.PMP401CMD,
	2005: tags.PMP401Auto,
	2006: tags.PMP402CMD,
	2007: tags.PMP402Auto,
	2008: tags.DO301CtrlEn,
	2009: tags.DO301CtrlMode,
	2010: tags.SCR101CMD,
	2011: tags.SCR101Auto,
	2012: tags.PMP301CMD,
	2013: tags.PMP301Auto,
	2014: tags.PMP501CMD,
	2015: tags.PMP501Auto,
	2016: tags.KillSwitch,
}

// discreteImage maps discrete inputs (FC 2) to digital status tags.
var discreteImage = map[uint16]string{
	3000: tags.PMP101FB,
	3001: tags.PMP101Fault,
	3002: tags.BLW201FB,
	3003: tags.BLW201Fault,
	3004: tags.PMP401FB,
	3005: tags.PMP402FB,
	3006: tags.DO301CtrlActive,
	3007: tags.LT101CtrlActive,
	3008: tags.SCR101FB,
	3009: tags.SCR101Fault,
	3010: tags.PMP301FB,
	3011: tags.PMP301Fault,
	3012: tags.PMP501FB,
	3013: tags.GRS201Skim,
}
