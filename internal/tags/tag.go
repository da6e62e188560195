package tags

import "time"

// Tag is the immutable declaration of one plant data point.
type Tag struct {
	Name        string
	Type        Kind
	Unit        string
	Description string
	Default     Value
}

// State is one tag with its current value, as returned by snapshots.
type State struct {
	Name        string
	Value       Value
	Type        Kind
	Unit        string
	Description string
	UpdatedAt   time.Time
}

// Update is one pending write inside a tick commit batch.
type Update struct {
	Name  string
	Value Value
}

// UpdateError reports one batch entry the registry refused.
type UpdateError struct {
	Name string
	Err  error
}

// Core plant tag names. The process model, alarm schedule, write whitelist
// and protocol maps all key off these.
const (
	GlobalMode = "WWTP01:SYSTEM:GLOBAL_MODE.PV"
	KillSwitch = "WWTP01:SYSTEM:KILL_SWITCH.PV"

	QIn           = "WWTP01:INFLUENT:Q_IN.PV"
	LT101         = "WWTP01:INFLUENT:LT101.PV"
	PMP101CMD     = "WWTP01:INFLUENT:PMP101.CMD"
	PMP101FB      = "WWTP01:INFLUENT:PMP101.FB"
	PMP101Auto    = "WWTP01:INFLUENT:PMP101.AUTO"
	PMP101Runtime = "WWTP01:INFLUENT:PMP101.RUNTIME"
	PMP101Fault   = "WWTP01:INFLUENT:PMP101.FAULT"
	VLV101Pos     = "WWTP01:INFLUENT:VLV101.POS"
	VLV101CMD     = "WWTP01:INFLUENT:VLV101.CMD"

	SCR101DP    = "WWTP01:SCREENING:SCR101.DP"
	SCR101CMD   = "WWTP01:SCREENING:SCR101.CMD"
	SCR101FB    = "WWTP01:SCREENING:SCR101.FB"
	SCR101Fault = "WWTP01:SCREENING:SCR101.FAULT"
	SCR101Auto  = "WWTP01:SCREENING:SCR101.AUTO"

	GRT201Level = "WWTP01:GRIT:GRT201.LEVEL"
	GRS201Skim  = "WWTP01:GRIT:GRS201.SKIM"

	LT301         = "WWTP01:PRIMARY:LT301.PV"
	PMP301CMD     = "WWTP01:PRIMARY:PMP301.CMD"
	PMP301FB      = "WWTP01:PRIMARY:PMP301.FB"
	PMP301Auto    = "WWTP01:PRIMARY:PMP301.AUTO"
	PMP301Fault   = "WWTP01:PRIMARY:PMP301.FAULT"
	PMP301Runtime = "WWTP01:PRIMARY:PMP301.RUNTIME"
	CODPrimary    = "WWTP01:PRIMARY:COD_PRI.PV"

	LT201         = "WWTP01:AERATION:LT201.PV"
	DO301         = "WWTP01:AERATION:DO301.PV"
	DO301SP       = "WWTP01:AERATION:DO301.SP"
	PH302         = "WWTP01:AERATION:pH302.PV"
	Temp303       = "WWTP01:AERATION:TEMP303.PV"
	BLW201CMD     = "WWTP01:AERATION:BLW201.CMD"
	BLW201FB      = "WWTP01:AERATION:BLW201.FB"
	BLW201Auto    = "WWTP01:AERATION:BLW201.AUTO"
	BLW201SP      = "WWTP01:AERATION:BLW201.SP"
	BLW201PV      = "WWTP01:AERATION:BLW201.PV"
	BLW201Fault   = "WWTP01:AERATION:BLW201.FAULT"
	BLW201Runtime = "WWTP01:AERATION:BLW201.RUNTIME"
	BLW201Current = "WWTP01:AERATION:BLW201.CURRENT"

	LT401         = "WWTP01:CLARIFIER:LT401.PV"
	TUR501        = "WWTP01:CLARIFIER:TUR501.PV"
	PMP401CMD     = "WWTP01:CLARIFIER:PMP401.CMD"
	PMP401FB      = "WWTP01:CLARIFIER:PMP401.FB"
	PMP401Auto    = "WWTP01:CLARIFIER:PMP401.AUTO"
	PMP401Runtime = "WWTP01:CLARIFIER:PMP401.RUNTIME"
	PMP402CMD     = "WWTP01:CLARIFIER:PMP402.CMD"
	PMP402FB      = "WWTP01:CLARIFIER:PMP402.FB"
	PMP402Auto    = "WWTP01:CLARIFIER:PMP402.AUTO"
	PMP402Runtime = "WWTP01:CLARIFIER:PMP402.RUNTIME"

	DoseFeCl3     = "WWTP01:CHEMICAL:DOSE_FECL3.PV"
	DoseFeCl3SP   = "WWTP01:CHEMICAL:DOSE_FECL3.SP"
	PMP501CMD     = "WWTP01:CHEMICAL:PMP501.CMD"
	PMP501FB      = "WWTP01:CHEMICAL:PMP501.FB"
	PMP501Auto    = "WWTP01:CHEMICAL:PMP501.AUTO"
	PMP501Runtime = "WWTP01:CHEMICAL:PMP501.RUNTIME"
	Tank501Level  = "WWTP01:CHEMICAL:TANK501.LEVEL"
	DosePoly      = "WWTP01:CHEMICAL:DOSE_POLY.PV"
	VLV501Pos     = "WWTP01:CHEMICAL:VLV501.POS"
	VLV501CMD     = "WWTP01:CHEMICAL:VLV501.CMD"

	QOut   = "WWTP01:EFFLUENT:Q_OUT.PV"
	PH501  = "WWTP01:EFFLUENT:pH501.PV"
	COD501 = "WWTP01:EFFLUENT:COD501.PV"

	DO301CtrlEn     = "WWTP01:AERATION:DO301.CTRL_EN"
	DO301CtrlMode   = "WWTP01:AERATION:DO301.CTRL_MODE"
	DO301CtrlActive = "WWTP01:AERATION:DO301.CTRL_ACTIVE"
	LT101CtrlEn     = "WWTP01:INFLUENT:LT101.CTRL_EN"
	LT101CtrlActive = "WWTP01:INFLUENT:LT101.CTRL_ACTIVE"
)
