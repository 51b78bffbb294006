package autotune

// Gain law engine constants, named and valued exactly as the ArduPilot
// AP_AutoTune source's AUTOTUNE_* defines.
const (
	incFF = 0.12
	decFF = 0.15
	incPD = 0.10
	decPD = 0.20

	iRatio     = 0.75
	trimTconst = 1.0
	overshoot  = 1.1

	imaxMin = 0.4
	imaxMax = 0.9

	savePeriodMS = 10_000

	lowRateFraction = 0.01
	attDemandFrac   = 0.3
	rateThresh2Frac = 0.25
	rateThresh1Frac = 0.6

	minEventMS = 100

	idleOscillationMS    = 500
	idleOscillationDmod  = 0.9

	logPeriodMS = 40 // 25 Hz

	floorD  = 0.0005
	floorP  = 0.01
	floorFF = 0.01

	rmaxSlewPerCallDegS = 20
	tauSlewFraction     = 0.15

	defaultRMaxPos = 75
	minRMax        = 75
	maxRMax        = 720
	minTau         = 0.1
	maxTau         = 2.0

	defaultSlewLimit = 150
)
